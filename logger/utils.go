package logger

// Emoji constants carried over from the teacher's visual log style.
const (
	EmojiReceived = "📨"
	EmojiTarget   = "🎯"
	EmojiStream   = "🌊"
	EmojiSuccess  = "✅"
	EmojiLaunch   = "🚀"
	EmojiAlert    = "🚨"
	EmojiStats    = "📊"
	EmojiRetry    = "🔁"
	EmojiAuth     = "🔐"
)

// LogRequestReceived logs an incoming chat completion request.
func LogRequestReceived(log Logger, model string, messageCount, toolCount int, stream bool) {
	log.WithModel(model).Info("%s received chat completion request: messages=%d tools=%d stream=%v",
		EmojiReceived, messageCount, toolCount, stream)
}

// LogTransmissionMode logs the mode the Transmission Policy selected for a
// request and the classifier decision that fed it.
func LogTransmissionMode(log Logger, class string, mode string) {
	log.Info("%s client classified %s, transmission mode %s", EmojiTarget, class, mode)
}

// LogUpstreamCall logs an outgoing call to the Vertex endpoint.
func LogUpstreamCall(log Logger, url string, streaming bool) {
	log.Info("%s calling upstream %s (streaming=%v)", EmojiLaunch, url, streaming)
}

// LogUpstreamRetry logs a retry attempt against the upstream, including the
// backoff delay chosen before the retry.
func LogUpstreamRetry(log Logger, attempt, max int, status int, delayMS int64) {
	log.Warn("%s retrying upstream call (attempt %d/%d) after status %d, backing off %dms",
		EmojiRetry, attempt, max, status, delayMS)
}

// LogQuotaExceeded logs a quota-exhaustion 429 distinct from an ordinary
// rate limit.
func LogQuotaExceeded(log Logger, attempt int) {
	log.Warn("%s quota exceeded on upstream call (attempt %d)", EmojiAlert, attempt)
}

// LogStreamStart logs the beginning of a streaming response.
func LogStreamStart(log Logger, chunkID string) {
	log.Info("%s streaming response started, chunk_id=%s", EmojiStream, chunkID)
}

// LogStreamComplete logs the terminal state of a streaming response.
func LogStreamComplete(log Logger, finishReason string, toolCalls int) {
	log.Info("%s stream complete: finish_reason=%s tool_calls=%d", EmojiSuccess, finishReason, toolCalls)
}

// LogResponseSummary logs a summary of a non-streaming response.
func LogResponseSummary(log Logger, textBlocks, toolCalls int, finishReason string) {
	log.Info("%s response summary: text_blocks=%d tool_calls=%d finish_reason=%s",
		EmojiStats, textBlocks, toolCalls, finishReason)
}

// LogCredentialRefresh logs a successful OAuth2 token refresh, naming only
// the service account's client_email, never a credential byte.
func LogCredentialRefresh(log Logger, clientEmail string) {
	log.Info("%s refreshed upstream access token for %s", EmojiAuth, clientEmail)
}
