package queries

import (
	"fmt"
	"reflect"

	"github.com/Nigel2392/go-django/src/core/attrs"
	formfields "github.com/Nigel2392/go-django/src/forms/fields"
	"github.com/elliotchance/orderedmap/v2"
)

func isZero(v any) bool {
	return formfields.IsZero(v)
}

// chainPart is one hop of a scanned relation chain: the hop's relation
// type, the field name it attaches under, and the materialized object
// with its primary key.
type chainPart struct {
	relTyp attrs.RelationType
	chain  string
	pk     any
	object attrs.Definer
}

type objectRelation struct {
	relTyp  attrs.RelationType
	objects *orderedmap.OrderedMap[any, *object]
}

type object struct {
	pk        any
	fieldDefs attrs.Definitions
	obj       attrs.Definer
	relations map[string]*objectRelation
}

// rows merges the physical result rows of a joined select back into
// distinct root objects.
//
// Objects are keyed by primary key at every level; insertion order is
// kept so the merged list follows the row order of the query.
type rows[T attrs.Definer] struct {
	objects *orderedmap.OrderedMap[any, *object]
}

func newRows[T attrs.Definer]() *rows[T] {
	return &rows[T]{
		objects: orderedmap.NewOrderedMap[any, *object](),
	}
}

func (r *rows[T]) addObject(chain []chainPart) {
	var root = chain[0]
	var obj, ok = r.objects.Get(root.pk)
	if !ok {
		obj = &object{
			pk:        root.pk,
			fieldDefs: root.object.FieldDefs(),
			obj:       root.object,
			relations: make(map[string]*objectRelation),
		}
		r.objects.Set(root.pk, obj)
	}

	var current = obj
	for _, part := range chain[1:] {
		var next, ok = current.relations[part.chain]
		if !ok {
			next = &objectRelation{
				relTyp:  part.relTyp,
				objects: orderedmap.NewOrderedMap[any, *object](),
			}
			current.relations[part.chain] = next
		}

		child, ok := next.objects.Get(part.pk)
		if !ok {
			child = &object{
				pk:        part.pk,
				fieldDefs: part.object.FieldDefs(),
				obj:       part.object,
				relations: make(map[string]*objectRelation),
			}
			next.objects.Set(part.pk, child)
		}

		current = child
	}
}

func (r *rows[T]) compile() []T {
	var addRelations func(*object)
	addRelations = func(obj *object) {
		if obj.pk == nil {
			panic(fmt.Sprintf("object %T has no primary key, cannot deduplicate relations", obj.obj))
		}

		for relName, rel := range obj.relations {
			if rel.objects.Len() == 0 {
				continue
			}

			var relatedObjects = make([]attrs.Definer, 0, rel.objects.Len())
			for relHead := rel.objects.Front(); relHead != nil; relHead = relHead.Next() {
				var relatedObj = relHead.Value
				if relatedObj == nil {
					continue
				}

				addRelations(relatedObj)

				relatedObjects = append(relatedObjects, relatedObj.obj)
			}

			switch rel.relTyp {
			case attrs.RelOneToOne, attrs.RelManyToOne:
				if len(relatedObjects) > 1 {
					panic(fmt.Sprintf("expected at most one related object for %s, got %d", relName, len(relatedObjects)))
				}
				var relatedObject attrs.Definer
				if len(relatedObjects) > 0 {
					relatedObject = relatedObjects[0]
				}
				obj.fieldDefs.Set(relName, relatedObject)
			case attrs.RelOneToMany, attrs.RelManyToMany:
				var field, ok = obj.fieldDefs.Field(relName)
				if !ok {
					panic(fmt.Sprintf("relation %s not found in field defs of %T", relName, obj.obj))
				}

				// slice-backed relation fields receive the objects directly,
				// anything else goes into the model's data store
				if field.Type().Kind() == reflect.Slice {
					obj.fieldDefs.Set(relName, relatedObjects)
					continue
				}

				if dm, ok := obj.obj.(DataModel); ok {
					dm.ModelDataStore().SetValue(relName, relatedObjects)
					continue
				}

				panic(fmt.Sprintf("cannot attach %s objects to %T", relName, obj.obj))
			}
		}
	}

	var root = make([]T, 0, r.objects.Len())
	for head := r.objects.Front(); head != nil; head = head.Next() {
		var obj = head.Value
		if obj == nil || obj.obj == nil {
			continue
		}

		addRelations(obj)

		root = append(root, obj.obj.(T))
	}
	return root
}
