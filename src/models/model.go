package models

import (
	queries "github.com/Nigel2392/go-django-queryset/src"
	"github.com/Nigel2392/go-django/src/core/attrs"
)

var (
	_ queries.DataModel     = &Model{}
	_ queries.SaveableModel = &Model{}
)

// Model is an embeddable base for queryset models.
//
// It carries the saved flag used by create operations and a loosely
// typed data store for relation values without a struct field.
type Model struct {
	saved bool
	data  mapDataStore
}

func (m *Model) Saved() bool {
	return m.saved
}

func (m *Model) SetSaved(saved bool) {
	m.saved = saved
}

func (m *Model) ModelDataStore() queries.ModelDataStore {
	if m.data == nil {
		m.data = make(mapDataStore)
	}
	return m.data
}

// Define builds the field definitions for a model, accepting both
// attrs.Field values and field name strings.
func (m *Model) Define(def attrs.Definer, flds ...any) *attrs.ObjectDefinitions {
	return Define(def, flds...)
}

func Define(def attrs.Definer, flds ...any) *attrs.ObjectDefinitions {
	var fields, err = attrs.UnpackFieldsFromArgs(def, flds...)
	if err != nil {
		panic(err)
	}
	return attrs.Define(def, fields...)
}
