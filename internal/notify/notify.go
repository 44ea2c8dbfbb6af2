// Package notify is the user-facing feedback channel. Every outcome of a user
// action, good or bad, reaches the user as a short-lived Notification.
package notify

import (
	"errors"
	"sync"
	"time"

	"keuangan/internal/core"
)

// Severity selects how a notification is styled.
type Severity string

const (
	Success Severity = "success"
	Error   Severity = "error"
	Warning Severity = "warning"
)

const (
	// DisplayDuration is how long a notification stays before it starts fading.
	DisplayDuration = 3 * time.Second
	// FadeDuration is the length of the fade-out transition.
	FadeDuration = 300 * time.Millisecond
)

// Messages shown to the user.
const (
	MsgCreated            = "Transaksi berhasil disimpan!"
	MsgCreateFailed       = "Gagal menyimpan transaksi!"
	MsgDeleted            = "Transaksi berhasil dihapus!"
	MsgDeleteFailed       = "Gagal menghapus transaksi!"
	MsgBackupDone         = "Backup data berhasil dibuat!"
	MsgBackupFailed       = "Gagal membuat backup data!"
	MsgBackupEmpty        = "Tidak ada data transaksi untuk dibackup"
	MsgExportDone         = "Data berhasil diexport ke CSV!"
	MsgExportFailed       = "Gagal mengexport data!"
	MsgExportEmpty        = "Tidak ada data transaksi untuk diexport"
	MsgSheetsDone         = "Data berhasil diexport ke Google Sheets!"
	MsgSheetsFailed       = "Gagal mengexport data ke Google Sheets!"
	MsgRestoreDone        = "Data berhasil dipulihkan!"
	MsgRestoreFailed      = "Gagal memulihkan data. Pastikan file backup valid."
	MsgFileReadFailed     = "Gagal membaca file!"
	MsgSaveFailed         = "Gagal menyimpan data ke penyimpanan!"
	MsgMissingDate        = "Harap isi tanggal transaksi!"
	MsgMissingDescription = "Harap isi keterangan transaksi!"
	MsgInvalidAmount      = "Jumlah transaksi harus lebih dari 0!"
	MsgInvalidType        = "Jenis transaksi tidak valid!"
)

// Notification is one message on the feedback channel.
type Notification struct {
	Severity Severity `json:"type"`
	Message  string   `json:"message"`
}

func Ok(msg string) Notification   { return Notification{Severity: Success, Message: msg} }
func Fail(msg string) Notification { return Notification{Severity: Error, Message: msg} }
func Warn(msg string) Notification { return Notification{Severity: Warning, Message: msg} }

// FromError maps an error to the message the user should read. fallback is used
// for errors that carry no specific user message.
func FromError(err error, fallback string) Notification {
	switch {
	case errors.Is(err, core.ErrMalformedPayload), errors.Is(err, core.ErrIncompleteRecord),
		errors.Is(err, core.ErrInvalidRecord):
		return Fail(MsgRestoreFailed)
	case errors.Is(err, core.ErrMissingDate):
		return Fail(MsgMissingDate)
	case errors.Is(err, core.ErrMissingDescription):
		return Fail(MsgMissingDescription)
	case errors.Is(err, core.ErrInvalidAmount):
		return Fail(MsgInvalidAmount)
	case errors.Is(err, core.ErrInvalidType):
		return Fail(MsgInvalidType)
	case errors.Is(err, core.ErrFileRead):
		return Fail(MsgFileReadFailed)
	case errors.Is(err, core.ErrPersistence):
		return Warn(MsgSaveFailed)
	default:
		return Fail(fallback)
	}
}

// Sink receives notifications.
type Sink interface {
	Notify(Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Notification)

func (f SinkFunc) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Sink = SinkFunc(func(Notification) {})

// Buffer collects notifications until drained.
type Buffer struct {
	mu    sync.Mutex
	items []Notification
}

func (b *Buffer) Notify(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, n)
}

// Drain returns the collected notifications and empties the buffer.
func (b *Buffer) Drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}
