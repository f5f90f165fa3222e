package queries

import (
	"github.com/Nigel2392/go-django/src/core/attrs"
	"github.com/Nigel2392/go-signals"
)

// SignalSave is sent around single-object create and update operations.
//
// Bulk operations intentionally do not emit signals.
type SignalSave struct {
	Instance attrs.Definer
	Using    QueryCompiler
}

// SignalDelete is sent around single-object delete operations.
type SignalDelete struct {
	Instance attrs.Definer
	Using    QueryCompiler
}

var (
	signalPoolSave   = signals.NewPool[SignalSave]()
	signalPoolDelete = signals.NewPool[SignalDelete]()

	SignalPreModelSave    = signalPoolSave.Get("model.pre_save")
	SignalPostModelSave   = signalPoolSave.Get("model.post_save")
	SignalPreModelDelete  = signalPoolDelete.Get("model.pre_delete")
	SignalPostModelDelete = signalPoolDelete.Get("model.post_delete")
)
