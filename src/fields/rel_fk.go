package fields

import (
	"github.com/Nigel2392/go-django/src/core/attrs"
)

// ForeignKeyField is the "many" side of a foreign key: it points from
// the owning model to a single related object.
type ForeignKeyField[T any] struct {
	*RelationField[T]
}

func NewForeignKeyField[T any](forModel attrs.Definer, dst any, name string, reverseName string, columnName string, rel attrs.Relation) *ForeignKeyField[T] {
	return &ForeignKeyField[T]{
		RelationField: NewRelatedField[T](
			forModel,
			dst,
			name,
			reverseName,
			columnName,
			&typedRelation{
				Relation: rel,
				typ:      attrs.RelManyToOne,
			},
		),
	}
}

// ForeignKeyReverseField is the "one" side of a foreign key: it holds
// the list of related objects whose foreign key points back at the
// owning model.
//
// The relation passed in should name the foreign key field on the
// related model, e.g. attrs.Relate(&Track{}, "Album", nil).
type ForeignKeyReverseField[T any] struct {
	*RelationField[T]
}

func NewForeignKeyReverseField[T any](forModel attrs.Definer, dst any, name string, reverseName string, columnName string, rel attrs.Relation) *ForeignKeyReverseField[T] {
	return &ForeignKeyReverseField[T]{
		RelationField: NewRelatedField[T](
			forModel,
			dst,
			name,
			reverseName,
			columnName,
			&typedRelation{
				Relation: rel,
				typ:      attrs.RelOneToMany,
			},
		),
	}
}
