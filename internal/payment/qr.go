package payment

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"payflow/internal/model"
)

const qrImageBase = "https://img.vietqr.io/image"

// VietQR short codes keyed by normalised bank name.
var bankCodes = map[string]string{
	"vietcombank":      "VCB",
	"techcombank":      "TCB",
	"vietinbank":       "ICB",
	"bidv":             "BIDV",
	"agribank":         "VBA",
	"mbbank":           "MB",
	"mb":               "MB",
	"militarybank":     "MB",
	"acb":              "ACB",
	"vpbank":           "VPB",
	"tpbank":           "TPB",
	"sacombank":        "STB",
	"vib":              "VIB",
	"shb":              "SHB",
	"hdbank":           "HDB",
	"ocb":              "OCB",
	"msb":              "MSB",
	"seabank":          "SEAB",
	"eximbank":         "EIB",
	"lpbank":           "LPB",
	"lienvietpostbank": "LPB",
	"scb":              "SCB",
	"abbank":           "ABB",
	"namabank":         "NAB",
	"bacabank":         "BAB",
	"pvcombank":        "PVCB",
	"kienlongbank":     "KLB",
	"ncb":              "NCB",
}

func normaliseBankName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BankCode maps a display bank name to its VietQR code. Unknown banks fall
// back to the normalised name in upper case.
func BankCode(bankName string) string {
	key := normaliseBankName(bankName)
	if code, ok := bankCodes[key]; ok {
		return code
	}
	if code, ok := bankCodes[key+"bank"]; ok {
		return code
	}
	if trimmed := strings.TrimSuffix(key, "bank"); trimmed != key {
		if code, ok := bankCodes[trimmed]; ok {
			return code
		}
	}
	return strings.ToUpper(key)
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func roundAmount(amount float64) int64 {
	return decimal.NewFromFloat(amount).Round(0).IntPart()
}

func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// QRCodeURL derives the VietQR image URL for a bank transfer. It returns an
// empty string when the instructions lack a bank or an account.
func QRCodeURL(b model.BankTransferInstructions) string {
	account := stripSpaces(b.AccountNumber)
	if strings.TrimSpace(b.BankName) == "" || account == "" {
		return ""
	}

	return fmt.Sprintf("%s/%s-%s-compact2.png?amount=%d&addInfo=%s&accountName=%s",
		qrImageBase,
		BankCode(b.BankName),
		account,
		roundAmount(b.Amount),
		encodeComponent(b.Content),
		encodeComponent(b.AccountHolder),
	)
}

// qrMemo caches the URL for the last instructions it saw.
type qrMemo struct {
	derive func(model.BankTransferInstructions) string
	key    model.BankTransferInstructions
	url    string
	valid  bool
}

func (m *qrMemo) get(b model.BankTransferInstructions) string {
	if m.valid && m.key == b {
		return m.url
	}
	derive := m.derive
	if derive == nil {
		derive = QRCodeURL
	}
	m.key, m.url, m.valid = b, derive(b), true
	return m.url
}
