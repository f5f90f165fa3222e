package queries

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/Nigel2392/go-django-queryset/internal"
	"github.com/Nigel2392/go-django-queryset/src/query_errors"
	"github.com/Nigel2392/go-django/src/core/attrs"
	"github.com/pkg/errors"
)

// pkOf collapses a field value to a comparable key: related objects are
// reduced to their primary key.
func pkOf(v any) any {
	if d, ok := v.(attrs.Definer); ok {
		if d == nil || reflect.ValueOf(d).IsNil() {
			return nil
		}
		return d.FieldDefs().Primary().GetValue()
	}
	return v
}

// execPrefetch runs the follow-up queries for all prefetch paths and
// attaches the fetched objects to the result list.
func (qs *QuerySet[T]) execPrefetch(ctx context.Context, objs []T) error {
	if len(objs) == 0 {
		return nil
	}

	var parents = make([]attrs.Definer, 0, len(objs))
	for _, obj := range objs {
		parents = append(parents, obj)
	}

	for _, path := range qs.prefetch {
		if err := prefetchPath(ctx, qs.database, parents, strings.Split(path, ".")); err != nil {
			return err
		}
	}
	return nil
}

// prefetchPath loads one level of a prefetch path with a single IN
// query and recurses into the fetched objects for the remaining parts.
func prefetchPath(ctx context.Context, database string, parents []attrs.Definer, parts []string) error {
	if len(parents) == 0 || len(parts) == 0 {
		return nil
	}

	var part = parts[0]
	var defs = parents[0].FieldDefs()
	var field, ok = defs.Field(part)
	if !ok {
		return errors.Wrapf(
			query_errors.ErrFieldNotFound,
			"field %q not found in %T", part, parents[0],
		)
	}

	var target, relTyp, isRel = internal.RelatedModel(field)
	if !isRel || target == nil {
		return errors.Wrapf(
			query_errors.ErrFieldNotFound,
			"field %q of %T is not a relation", part, parents[0],
		)
	}
	target = internal.NewObjectFromIface(target)

	switch relTyp {
	case attrs.RelManyToOne, attrs.RelOneToOne:
		return prefetchForward(ctx, database, parents, part, field, target, parts[1:])
	case attrs.RelOneToMany:
		return prefetchReverse(ctx, database, parents, part, field, target, parts[1:])
	default:
		return errors.Wrapf(
			query_errors.ErrNotImplemented,
			"relation type %v of field %q", relTyp, part,
		)
	}
}

func prefetchForward(
	ctx context.Context,
	database string,
	parents []attrs.Definer,
	relName string,
	field attrs.Field,
	target attrs.Definer,
	rest []string,
) error {
	var targetField = relationTargetField(field, target)

	var ids = make([]any, 0, len(parents))
	var seen = make(map[any]struct{}, len(parents))
	for _, parent := range parents {
		var f, _ = parent.FieldDefs().Field(relName)
		var id = pkOf(f.GetValue())
		if id == nil || isZero(id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil
	}

	var children, err = Objects[attrs.Definer](target, database).
		Filter(targetField.Name()+"__in", ids).
		All(ctx)
	if err != nil {
		return err
	}

	var byID = make(map[string]attrs.Definer, len(children))
	for _, child := range children {
		var f, _ = child.FieldDefs().Field(targetField.Name())
		byID[fmt.Sprint(f.GetValue())] = child
	}

	for _, parent := range parents {
		var pDefs = parent.FieldDefs()
		var f, _ = pDefs.Field(relName)
		var id = pkOf(f.GetValue())
		if id == nil || isZero(id) {
			continue
		}
		if child, ok := byID[fmt.Sprint(id)]; ok {
			pDefs.Set(relName, child)
		}
	}

	return prefetchPath(ctx, database, children, rest)
}

func prefetchReverse(
	ctx context.Context,
	database string,
	parents []attrs.Definer,
	relName string,
	field attrs.Field,
	target attrs.Definer,
	rest []string,
) error {
	var childFk = relationTargetField(field, target)

	var pks = make([]any, 0, len(parents))
	for _, parent := range parents {
		var pk = parent.FieldDefs().Primary().GetValue()
		if isZero(pk) {
			continue
		}
		pks = append(pks, pk)
	}

	if len(pks) == 0 {
		return nil
	}

	var children, err = Objects[attrs.Definer](target, database).
		Filter(childFk.Name()+"__in", pks).
		All(ctx)
	if err != nil {
		return err
	}

	var grouped = make(map[string][]attrs.Definer, len(parents))
	for _, child := range children {
		var f, _ = child.FieldDefs().Field(childFk.Name())
		var key = fmt.Sprint(pkOf(f.GetValue()))
		grouped[key] = append(grouped[key], child)
	}

	for _, parent := range parents {
		var pDefs = parent.FieldDefs()
		var key = fmt.Sprint(pDefs.Primary().GetValue())
		var group = grouped[key]
		if group == nil {
			group = make([]attrs.Definer, 0)
		}

		var f, _ = pDefs.Field(relName)
		if f.Type().Kind() == reflect.Slice {
			pDefs.Set(relName, group)
			continue
		}
		if dm, ok := parent.(DataModel); ok {
			dm.ModelDataStore().SetValue(relName, group)
		}
	}

	return prefetchPath(ctx, database, children, rest)
}
