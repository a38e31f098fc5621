// internal/antidetect/captcha.go
package antidetect

import "strings"

// CaptchaType represents the type of CAPTCHA
type CaptchaType int

const (
	NoCaptcha CaptchaType = iota
	RecaptchaV2
	RecaptchaV3
	HCaptcha
	FunCaptcha
)

func (c CaptchaType) String() string {
	switch c {
	case RecaptchaV2:
		return "recaptcha_v2"
	case RecaptchaV3:
		return "recaptcha_v3"
	case HCaptcha:
		return "hcaptcha"
	case FunCaptcha:
		return "funcaptcha"
	default:
		return "none"
	}
}

// DetectCaptcha reports a CAPTCHA widget in page markup. The login flow
// cannot solve one; it only logs the finding next to the page dump.
func DetectCaptcha(html string) (CaptchaType, bool) {
	html = strings.ToLower(html)

	if strings.Contains(html, "recaptcha/api.js?render=") {
		return RecaptchaV3, true
	}

	if strings.Contains(html, "g-recaptcha") {
		return RecaptchaV2, true
	}

	if strings.Contains(html, "h-captcha") {
		return HCaptcha, true
	}

	if strings.Contains(html, "funcaptcha") || strings.Contains(html, "arkoselabs") {
		return FunCaptcha, true
	}

	return NoCaptcha, false
}
