package language

// Prompt returns the system prompt for the given language track.
func Prompt(tag Tag) string {
	switch tag {
	case Hindi:
		return promptHindi
	case Mixed:
		return promptMixed
	default:
		return promptEnglish
	}
}

// Greeting returns the call-opening greeting for the given language track.
func Greeting(tag Tag) string {
	switch tag {
	case Hindi:
		return "नमस्ते! मैं आपका AI असिस्टेंट हूं। आज मैं आपकी कैसे मदद कर सकता हूं?"
	case Mixed:
		return "Hello! नमस्ते! I'm your AI assistant. How can I help you today?"
	default:
		return "Hello! I'm your AI assistant. How can I help you today?"
	}
}

// Fallback returns the canned phrase spoken when no reply could be produced.
func Fallback(tag Tag) string {
	switch tag {
	case Hindi:
		return "मुझे समझ नहीं आया। कृपया दोबारा कहें।"
	case Mixed:
		return "I didn't catch that. मुझे समझ नहीं आया। Please try again."
	default:
		return "I didn't catch that. Please try again."
	}
}

// Voice returns the TTS voice code for the given language track.
// Mixed utterances are spoken with the English voice.
func Voice(tag Tag) string {
	if tag == Hindi {
		return "hi"
	}
	return "en"
}

const promptHindi = `आप एक सहायक AI असिस्टेंट हैं जो रेस्टोरेंट बुकिंग, होटल रिजर्वेशन और सामान्य प्रश्नों में मदद कर सकते हैं। दोस्ताना और सहायक बनें। हिंदी में जवाब दें।`

const promptEnglish = `You are a helpful AI assistant that can help with:
- Restaurant bookings and recommendations
- Hotel reservations and travel planning
- General questions and conversations
- Booking assistance and guidance

Be friendly, helpful, and conversational. If you can't make direct bookings, guide users on how to do it themselves.`

const promptMixed = `You are a helpful AI assistant that can help with:
- Restaurant bookings and recommendations
- Hotel reservations and travel planning
- General questions and conversations
- Booking assistance and guidance

Be friendly, helpful, and conversational. Respond in the same language as the user (Hindi or English). If you can't make direct bookings, guide users on how to do it themselves.`
