package export

import "github.com/atotto/clipboard"

// SystemClipboard writes to the clipboard of the machine running the service.
type SystemClipboard struct{}

func (SystemClipboard) WriteText(s string) error {
	if clipboard.Unsupported {
		return errClipboardUnsupported
	}
	return clipboard.WriteAll(s)
}
