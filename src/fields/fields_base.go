package fields

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"

	queries "github.com/Nigel2392/go-django-queryset/src"
	"github.com/Nigel2392/go-django/src/core/attrs"
	"github.com/Nigel2392/go-django/src/forms/fields"
)

var _ attrs.Field = &DataModelField[any]{}

// DataModelField is a virtual field backed by either a plain struct
// member or the model's data store.
//
// It has no database column of its own; relation fields embed it to get
// a full attrs.Field implementation for free.
type DataModelField[T any] struct {
	// model is the model that this field belongs to
	Model any

	// dataModel is the destination for the field's value
	//
	// either a pointer to the struct member or a type implementing
	// queries.DataModel / queries.ModelDataStore
	DataModel any

	// name is the name of the field's map key in the model
	name string

	// resultType is the type of the field's value
	resultType reflect.Type
}

func NewDataModelField[T any](forModel any, dst any, name string) *DataModelField[T] {
	if forModel == nil || dst == nil {
		panic("NewDataModelField: model is nil")
	}

	if name == "" {
		panic("NewDataModelField: name is empty")
	}

	var Type = reflect.TypeOf((*T)(nil)).Elem()
	if _, ok := dst.(queries.DataModel); !ok {
		var (
			dstT = reflect.TypeOf(dst)
			dstV = reflect.ValueOf(dst)
		)
		if dstT.Kind() != reflect.Ptr {
			panic("NewDataModelField: dst is not a pointer")
		}

		if !dstV.IsValid() {
			panic(fmt.Errorf("NewDataModelField: dst is nil: %T", dst))
		}

		if Type.Kind() != reflect.Interface {
			if dstT.Elem() != Type {
				panic(fmt.Errorf("NewDataModelField: dst %T is not a pointer to %s (%T.%s)", dst, Type, forModel, name))
			}
		} else {
			if !dstT.Elem().Implements(Type) {
				panic(fmt.Errorf("NewDataModelField: dst %T does not implement %s (%T.%s)", dst, Type, forModel, name))
			}
		}
	}

	return &DataModelField[T]{
		Model:      forModel,
		DataModel:  dst,
		resultType: Type,
		name:       name,
	}
}

func (f *DataModelField[T]) getQueryValue() (any, bool) {
	switch m := f.DataModel.(type) {
	case queries.ModelDataStore:
		return m.GetValue(f.name)
	case queries.DataModel:
		return m.ModelDataStore().GetValue(f.name)
	}

	var rVal = reflect.ValueOf(f.DataModel)
	if !rVal.IsValid() {
		return nil, false
	}

	return rVal.Elem().Interface(), true
}

func (f *DataModelField[T]) setQueryValue(v any) error {
	switch m := f.DataModel.(type) {
	case queries.ModelDataStore:
		return m.SetValue(f.name, v)
	case queries.DataModel:
		return m.ModelDataStore().SetValue(f.name, v)
	}

	var rVal = reflect.ValueOf(f.DataModel)
	if !rVal.IsValid() {
		return fmt.Errorf("setQueryValue: dst value is nil")
	}

	if !rVal.Elem().CanSet() {
		return fmt.Errorf("setQueryValue: dst value is not settable")
	}

	rVal.Elem().Set(reflect.ValueOf(v))
	return nil
}

func (f *DataModelField[T]) Name() string {
	return f.name
}

// no real column, special case for virtual fields
func (e *DataModelField[T]) ColumnName() string {
	return ""
}

func (e *DataModelField[T]) Tag(string) string {
	return ""
}

func (e *DataModelField[T]) Type() reflect.Type {
	if e.resultType == nil {
		panic("resultType is nil")
	}

	return e.resultType
}

func (e *DataModelField[T]) Attrs() map[string]any {
	return map[string]any{}
}

func (e *DataModelField[T]) IsPrimary() bool {
	return false
}

func (e *DataModelField[T]) AllowNull() bool {
	return true
}

func (e *DataModelField[T]) AllowBlank() bool {
	return true
}

func (e *DataModelField[T]) AllowEdit() bool {
	return false
}

func (e *DataModelField[T]) GetValue() interface{} {
	if e.DataModel == nil {
		panic("model is nil")
	}

	var val, ok = e.getQueryValue()
	if !ok || val == nil {
		return *new(T)
	}

	valTyped, ok := val.(T)
	if !ok {
		return *new(T)
	}

	return valTyped
}

func castToNumber[T any](s string) (any, error) {
	var n, err = attrs.CastToNumber[T](s)
	return n, err
}

var reflect_convert = map[reflect.Kind]func(string) (any, error){
	reflect.Int:     castToNumber[int],
	reflect.Int8:    castToNumber[int8],
	reflect.Int16:   castToNumber[int16],
	reflect.Int32:   castToNumber[int32],
	reflect.Int64:   castToNumber[int64],
	reflect.Uint:    castToNumber[uint],
	reflect.Uint8:   castToNumber[uint8],
	reflect.Uint16:  castToNumber[uint16],
	reflect.Uint32:  castToNumber[uint32],
	reflect.Uint64:  castToNumber[uint64],
	reflect.Float32: castToNumber[float32],
	reflect.Float64: castToNumber[float64],
	reflect.String: func(s string) (any, error) {
		return s, nil
	},
	reflect.Bool: func(s string) (any, error) {
		var b, err = strconv.ParseBool(s)
		return b, err
	},
}

func (e *DataModelField[T]) SetValue(v interface{}, _ bool) error {
	if e.DataModel == nil {
		panic("model is nil")
	}

	var rV = reflect.ValueOf(v)
	if !rV.IsValid() {
		return e.setQueryValue(*new(T))
	}

	var rT = rV.Type()
	switch {
	case rT == e.resultType:

	case rT.ConvertibleTo(e.resultType):
		rV = rV.Convert(e.resultType)

	case rT.Kind() == reflect.Ptr && rT.Elem().ConvertibleTo(e.resultType):
		if rV.IsNil() {
			return e.setQueryValue(*new(T))
		}
		rV = rV.Elem()
		if rV.Type() != e.resultType {
			rV = rV.Convert(e.resultType)
		}

	case rT.Kind() == reflect.String:
		var fn, ok = reflect_convert[e.resultType.Kind()]
		if !ok {
			return fmt.Errorf("cannot convert %v to %T", v, *new(T))
		}
		var val, err = fn(rV.String())
		if err != nil {
			return fmt.Errorf("cannot convert %v to %T: %w", v, *new(T), err)
		}
		rV = reflect.ValueOf(val)
		if rV.Type() != e.resultType {
			rV = rV.Convert(e.resultType)
		}

	case rT.Kind() == reflect.Slice && e.resultType.Kind() == reflect.Slice:
		// related object lists arrive as []attrs.Definer
		var out = reflect.MakeSlice(e.resultType, 0, rV.Len())
		for i := 0; i < rV.Len(); i++ {
			var el = rV.Index(i)
			if el.Kind() == reflect.Interface {
				el = el.Elem()
			}
			if !el.Type().AssignableTo(e.resultType.Elem()) {
				return fmt.Errorf(
					"cannot assign %s to element of %s",
					el.Type(), e.resultType,
				)
			}
			out = reflect.Append(out, el)
		}
		rV = out

	default:
		return fmt.Errorf("value %v (%T) is not of type %s", v, v, e.resultType)
	}

	return e.setQueryValue(rV.Interface())
}

func (e *DataModelField[T]) Value() (driver.Value, error) {
	var val = e.GetValue()
	if val == nil {
		return nil, nil
	}

	return val, nil
}

func (e *DataModelField[T]) Scan(src interface{}) error {
	return e.SetValue(src, false)
}

func (e *DataModelField[T]) GetDefault() interface{} {
	return nil
}

func (e *DataModelField[T]) Instance() attrs.Definer {
	if e.Model == nil {
		panic("model is nil")
	}
	if def, ok := e.Model.(attrs.Definer); ok {
		return def
	}
	panic(fmt.Errorf("model %T does not implement attrs.Definer", e.Model))
}

func (e *DataModelField[T]) Rel() attrs.Relation {
	return nil
}

func (e *DataModelField[T]) ForeignKey() attrs.Definer {
	return nil
}

func (e *DataModelField[T]) OneToOne() attrs.Relation {
	return nil
}

func (e *DataModelField[T]) ManyToMany() attrs.Relation {
	return nil
}

func (e *DataModelField[T]) FormField() fields.Field {
	return nil
}

func (e *DataModelField[T]) Validate() error {
	return nil
}

func (e *DataModelField[T]) Label() string {
	return e.name
}

func (e *DataModelField[T]) ToString() string {
	return fmt.Sprint(e.GetValue())
}

func (e *DataModelField[T]) HelpText() string {
	return ""
}
