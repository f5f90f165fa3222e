package queries

import (
	"context"
	"fmt"

	"github.com/Nigel2392/go-django-queryset/internal"
	"github.com/Nigel2392/go-django-queryset/src/query_errors"
	"github.com/Nigel2392/go-django/src/core/attrs"
	"github.com/Nigel2392/go-django/src/forms/fields"
	"github.com/Nigel2392/go-signals"
	"github.com/pkg/errors"
)

// GetObject retrieves an object from the database by its identifier.
//
// The identifier can be any type, but it is expected to be the primary key of the object.
func GetObject[T attrs.Definer](ctx context.Context, identifier any, database ...string) (T, error) {
	var obj = internal.NewDefiner[T]()
	var (
		defs         = obj.FieldDefs()
		primaryField = defs.Primary()
	)

	if err := primaryField.SetValue(identifier, true); err != nil {
		return obj, err
	}

	primaryValue, err := primaryField.Value()
	if err != nil {
		return obj, err
	}

	if fields.IsZero(primaryValue) {
		return obj, errors.Wrapf(
			query_errors.ErrFieldNull,
			"Primary field %q cannot be null",
			primaryField.Name(),
		)
	}

	return Objects(obj, database...).Get(
		ctx,
		fmt.Sprintf("%s__exact", primaryField.Name()),
		primaryValue,
	)
}

// ListObjects lists objects from the database.
//
// It takes an offset and a limit as parameters and returns a slice of objects of type T.
func ListObjects[T attrs.Definer](ctx context.Context, offset, limit uint64, ordering ...string) ([]T, error) {
	var obj = internal.NewDefiner[T]()
	return Objects(obj).
		OrderBy(ordering...).
		Limit(int(limit)).
		Offset(int(offset)).
		All(ctx)
}

// ListObjectsByIDs lists objects from the database by their primary keys.
func ListObjectsByIDs[T attrs.Definer, T2 any](ctx context.Context, offset, limit uint64, ids []T2) ([]T, error) {
	var (
		obj          = internal.NewDefiner[T]()
		definitions  = obj.FieldDefs()
		primaryField = definitions.Primary()
	)

	return Objects(obj).
		Filter(
			fmt.Sprintf("%s__in", primaryField.Name()),
			attrs.InterfaceList(ids)...,
		).
		Limit(int(limit)).
		Offset(int(offset)).
		All(ctx)
}

// CountObjects counts the number of objects in the database.
func CountObjects[T attrs.Definer](ctx context.Context, obj T) (int64, error) {
	return Objects(obj).AllRows().Count(ctx)
}

// SaveObject saves an object to the database.
//
// A zero primary key creates a new row, anything else updates the
// existing row.
func SaveObject[T attrs.Definer](ctx context.Context, obj T) error {
	var fieldDefs = obj.FieldDefs()
	var primaryField = fieldDefs.Primary()
	var primaryValue, err = primaryField.Value()
	if err != nil {
		return err
	}
	if fields.IsZero(primaryValue) {
		return CreateObject(ctx, obj)
	}
	_, err = UpdateObject(ctx, obj)
	return err
}

func sendSignal(s signals.Signal[SignalSave], obj attrs.Definer, q QueryCompiler) error {
	return s.Send(SignalSave{
		Instance: obj,
		Using:    q,
	})
}

// updateValues collects the editable, non-primary column values of an
// object for a single-row update.
func updateValues(obj attrs.Definer) (map[string]any, error) {
	var defs = obj.FieldDefs()
	var values = make(map[string]any)
	for _, f := range defs.Fields() {
		if f.ColumnName() == "" || !ForSelectAll(f) || f.IsPrimary() || !f.AllowEdit() {
			continue
		}

		var val, err = f.Value()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get value of %q", f.Name())
		}
		if val == nil && !f.AllowNull() {
			return nil, errors.Wrapf(
				query_errors.ErrFieldNull,
				"Field %q cannot be null",
				f.Name(),
			)
		}
		values[f.Name()] = val
	}
	return values, nil
}

// CreateObject creates a new object in the database.
//
// Pre and post save signals are sent by the underlying queryset.
func CreateObject[T attrs.Definer](ctx context.Context, obj T) error {
	var _, err = Objects(obj).Create(ctx, obj)
	return err
}

// UpdateObject updates an existing object in the database by primary
// key, sending pre and post save signals around the write.
func UpdateObject[T attrs.Definer](ctx context.Context, obj T) (int64, error) {
	var (
		definitions = obj.FieldDefs()
		primary     = definitions.Primary()
	)

	var primaryVal, err = primary.Value()
	if err != nil {
		return 0, err
	}

	var qs = Objects(obj).Filter(primary.Name(), primaryVal)

	if err := sendSignal(SignalPreModelSave, obj, qs.Compiler()); err != nil {
		return 0, err
	}

	values, err := updateValues(obj)
	if err != nil {
		return 0, err
	}

	count, err := qs.Update(ctx, values)
	if err != nil {
		return 0, err
	}

	if err := sendSignal(SignalPostModelSave, obj, qs.Compiler()); err != nil {
		return 0, err
	}

	return count, nil
}

// DeleteObject deletes an object from the database by primary key,
// sending pre and post delete signals around the write.
func DeleteObject[T attrs.Definer](ctx context.Context, obj T) (int64, error) {
	var (
		definitions = obj.FieldDefs()
		primary     = definitions.Primary()
	)

	var primaryVal, err = primary.Value()
	if err != nil {
		return 0, err
	}

	var qs = Objects(obj).Filter(primary.Name(), primaryVal)

	if err := SignalPreModelDelete.Send(SignalDelete{
		Instance: obj,
		Using:    qs.Compiler(),
	}); err != nil {
		return 0, err
	}

	count, err := qs.Delete(ctx)
	if err != nil {
		return 0, err
	}

	if err := SignalPostModelDelete.Send(SignalDelete{
		Instance: obj,
		Using:    qs.Compiler(),
	}); err != nil {
		return count, err
	}

	return count, nil
}
