package chain

import (
	"errors"
	"regexp"
	"strconv"
)

var customErrPattern = regexp.MustCompile(`custom program error: (0x[0-9a-fA-F]+)`)

// CustomErrorCode reports the program error code carried by err, either as a
// *TxError from confirmation or inside a preflight simulation failure message.
func CustomErrorCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	var txErr *TxError
	if errors.As(err, &txErr) && txErr.Code >= 0 {
		return txErr.Code, true
	}
	m := customErrPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	code, perr := strconv.ParseInt(m[1], 0, 32)
	if perr != nil {
		return 0, false
	}
	return int(code), true
}
