package session

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/router"
	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/validation"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-gemini-bot/pkg/whatsapp"
)

type RequestLoginCode struct {
	Phone string `json:"phone" form:"phone"`
}

type ResponseLogin struct {
	QRCode  string `json:"qr_code"`
	Timeout int    `json:"timeout"`
}

type ResponseLoginCode struct {
	PairCode string `json:"pair_code"`
	Timeout  int    `json:"timeout"`
}

type ResponseStatus struct {
	JID     string `json:"jid,omitempty"`
	IsReady bool   `json:"is_ready"`
	Detail  string `json:"detail,omitempty"`
}

// Login
// @Summary     Pair the Bot Session by Scanning a QR Code
// @Description Generate a QR code for pairing, or reconnect when already paired
// @Tags        Session
// @Produce     json
// @Param       output formData string false "Output format: html or json"
// @Security    AdminAuth
// @Success     200
// @Router      /session/login [post]
func Login(c *fiber.Ctx) error {
	output := strings.TrimSpace(c.FormValue("output"))
	if len(output) == 0 {
		output = "html"
	}

	pkgWhatsApp.WhatsAppInitClient(nil)

	qrCodeImage, qrCodeTimeout, err := pkgWhatsApp.WhatsAppLogin()
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	if !strings.HasPrefix(qrCodeImage, "data:image") {
		return router.ResponseSuccess(c, qrCodeImage)
	}

	var resLogin ResponseLogin
	resLogin.QRCode = qrCodeImage
	resLogin.Timeout = qrCodeTimeout

	if output == "html" {
		htmlContent := `
		<html>
			<head>
				<title>WhatsApp Gemini Bot Login</title>
				<meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no" />
			</head>
			<body>
				<img src="` + resLogin.QRCode + `" />
				<p>
					<b>QR Code Scan</b>
					<br/>
					Timeout in ` + strconv.Itoa(resLogin.Timeout) + ` Second(s)
				</p>
			</body>
		</html>
		`

		c.Set("Content-Type", "text/html")
		return c.SendString(htmlContent)
	}

	return router.ResponseSuccessWithData(c, "Success Generate QR Code", resLogin)
}

// LoginWithCode
// @Summary     Pair the Bot Session with a Phone Pairing Code
// @Description Generate a pairing code for the given phone number
// @Tags        Session
// @Accept      json
// @Produce     json
// @Security    AdminAuth
// @Success     200
// @Router      /session/login-code [post]
func LoginWithCode(c *fiber.Ctx) error {
	var reqLoginCode RequestLoginCode
	err := c.BodyParser(&reqLoginCode)
	if err != nil {
		return router.ResponseBadRequest(c, "Failed parse body request")
	}

	phone := strings.TrimSpace(reqLoginCode.Phone)
	if phone == "" {
		return router.ResponseBadRequest(c, "Phone is required")
	}
	if err := validation.ValidatePhone(phone); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	pkgWhatsApp.WhatsAppInitClient(nil)

	pairCode, timeout, err := pkgWhatsApp.WhatsAppLoginPair(phone)
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	var resLoginCode ResponseLoginCode
	resLoginCode.PairCode = pairCode
	resLoginCode.Timeout = timeout

	return router.ResponseSuccessWithData(c, "Success Generate Pairing Code", resLoginCode)
}

// Reconnect
// @Summary     Reconnect the Bot Session
// @Tags        Session
// @Produce     json
// @Security    AdminAuth
// @Success     200
// @Router      /session/reconnect [post]
func Reconnect(c *fiber.Ctx) error {
	err := pkgWhatsApp.WhatsAppReconnect()
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseSuccess(c, "Success reconnect session")
}

// Logout
// @Summary     Log the Bot Session out of WhatsApp
// @Tags        Session
// @Produce     json
// @Security    AdminAuth
// @Success     200
// @Router      /session [delete]
func Logout(c *fiber.Ctx) error {
	err := pkgWhatsApp.WhatsAppLogout()
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseSuccess(c, "Success logout session")
}

// Status
// @Summary     Show the Bot Session Status
// @Tags        Session
// @Produce     json
// @Security    AdminAuth
// @Success     200
// @Router      /session/status [get]
func Status(c *fiber.Ctx) error {
	var resStatus ResponseStatus
	resStatus.JID = pkgWhatsApp.WhatsAppGetOwnJID()
	if err := pkgWhatsApp.WhatsAppIsClientOK(); err != nil {
		resStatus.Detail = err.Error()
	} else {
		resStatus.IsReady = true
	}

	return router.ResponseSuccessWithData(c, "Success get session status", resStatus)
}
