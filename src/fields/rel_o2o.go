package fields

import (
	"github.com/Nigel2392/go-django/src/core/attrs"
)

// OneToOneField points at exactly one related object on either side of
// the relation.
type OneToOneField[T any] struct {
	*RelationField[T]
}

func NewOneToOneField[T any](forModel attrs.Definer, dst any, name string, reverseName string, columnName string, rel attrs.Relation) *OneToOneField[T] {
	return &OneToOneField[T]{
		RelationField: NewRelatedField[T](
			forModel,
			dst,
			name,
			reverseName,
			columnName,
			&typedRelation{
				Relation: rel,
				typ:      attrs.RelOneToOne,
			},
		),
	}
}
