package model

// PendingImage is a file the user has selected for upload but not yet sent.
// ID only identifies the entry in the selection list.
type PendingImage struct {
	ID       string
	Path     string
	Name     string
	MIMEType string
	Size     int64
	Data     []byte

	// Preview is a one-line description shown before submitting.
	Preview string
}
