package telephony

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"delivery-dispatch/pkg/logger"
)

// TwilioWebhookHandler converts the Twilio voice webhook to an InboundCall,
// delegates the decision to the allocator, and writes TwiML.
//
// No business logic here. Every path answers 200 with TwiML so the caller
// always hears something.
type TwilioWebhookHandler struct {
	Allocator CallAllocator

	Now func() time.Time
}

func (h TwilioWebhookHandler) HandleInboundCall(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Now == nil {
		h.Now = time.Now
	}
	if h.Allocator == nil {
		log.Error("twilio webhook: allocator not configured")
		writeTwiML(c, SayResponse(PromptProcessingError))
		return
	}

	form, err := ParseTwilioInboundCall(c.Request)
	if err != nil {
		log.Warn("twilio webhook parse failed", "err", err)
		writeTwiML(c, SayResponse(PromptProcessingError))
		return
	}

	call := form.ToInboundCall(h.Now().UTC())
	res := h.Allocator.HandleInboundCall(c.Request.Context(), call)
	writeTwiML(c, res)
}

// RecoverWithTwiML turns a panic further down the webhook chain into the
// processing error prompt with status 200, so the provider never plays its
// own application error message.
func RecoverWithTwiML() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.FromGin(c).Error("twilio webhook panic", "panic", recovered)
		c.Data(http.StatusOK, "application/xml", []byte(fallbackTwiML))
		c.Abort()
	})
}

func writeTwiML(c *gin.Context, res Response) {
	body, err := RenderTwiML(res)
	if err != nil {
		logger.FromGin(c).Error("twiml render failed", "err", err)
		body = fallbackTwiML
	}
	c.Data(http.StatusOK, "application/xml", []byte(body))
}
