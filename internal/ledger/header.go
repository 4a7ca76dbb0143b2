package ledger

import "time"

// Header carries the state of the ledger the pipeline is applying into:
// its sequence number, close time, and protocol version. Every record
// write is stamped with the header's sequence.
type Header struct {
	Seq       uint64
	CloseTime time.Time
	Version   uint32
	Features  Features
}

// Features are the protocol switches that change pipeline behavior.
type Features struct {
	// FeeExtension enables transaction fee processing.
	FeeExtension bool
	// DetailedChanges keeps the full operation-ordered change journal in
	// transaction meta instead of the collapsed per-key view.
	DetailedChanges bool
}

// Sequence satisfies the store's version-stamp source.
func (h *Header) Sequence() uint64 { return h.Seq }

// Advance moves the header to the next sequence at the given close time.
func (h *Header) Advance(closeTime time.Time) {
	h.Seq++
	h.CloseTime = closeTime
}
