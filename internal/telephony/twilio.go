package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"delivery-dispatch/pkg/logger"
)

// TwilioSignatureHeader carries the request signature Twilio computes with
// the account auth token.
const TwilioSignatureHeader = "X-Twilio-Signature"

// ComputeTwilioSignature returns base64(HMAC-SHA1(authToken, url + sorted params)),
// where every POST parameter contributes name+value in name order.
// Ref: https://www.twilio.com/docs/usage/security#validating-requests
func ComputeTwilioSignature(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		vals := append([]string(nil), params[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidTwilioSignature compares signature against the expected value in constant time.
func ValidTwilioSignature(authToken, fullURL string, params url.Values, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}
	want := ComputeTwilioSignature(authToken, fullURL, params)
	return hmac.Equal([]byte(want), []byte(signature))
}

// RequestURL rebuilds the URL Twilio signed. publicBaseURL, when set, replaces
// scheme and host because proxies rewrite both.
func RequestURL(r *http.Request, publicBaseURL string) string {
	if base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"); base != "" {
		return base + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.TrimSpace(strings.Split(p, ",")[0])
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// RequireTwilioSignature rejects webhook requests whose X-Twilio-Signature
// does not match. Requests failing validation did not come from Twilio, so
// they get 403 rather than TwiML.
func RequireTwilioSignature(authToken, publicBaseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromGin(c)

		if err := c.Request.ParseForm(); err != nil {
			log.Warn("twilio signature: form parse failed", "err", err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
			return
		}

		sig := c.GetHeader(TwilioSignatureHeader)
		fullURL := RequestURL(c.Request, publicBaseURL)
		if !ValidTwilioSignature(authToken, fullURL, c.Request.PostForm, sig) {
			log.Warn("twilio signature rejected", "url", fullURL, "has_signature", sig != "")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}
