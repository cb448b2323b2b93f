package telephony

import "fmt"

// Caller-facing prompts.
const (
	PromptAllBusy                 = "Sorry, all delivery partners are currently busy. Please try again later."
	PromptForwardingNotConfigured = "Call forwarding is not configured. Please contact support."
	PromptProcessingError         = "Sorry, there was an error processing your call. Please try again later."
	PromptMissingCaller           = "Sorry, we could not identify your phone number. Please call again from a number that is not hidden."
)

// PromptConnecting names the worker the call is being handed to.
func PromptConnecting(workerName string) string {
	return fmt.Sprintf("Connecting you to delivery partner %s", workerName)
}
