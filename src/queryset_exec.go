package queries

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Nigel2392/go-django-queryset/internal"
	"github.com/Nigel2392/go-django-queryset/src/query_errors"
	"github.com/Nigel2392/go-django/src/core/attrs"
	"github.com/pkg/errors"
)

// assignField writes a raw database value into a model field, going
// through sql.Scanner when the field implements it.
func assignField(field attrs.Field, v any) error {
	if v == nil {
		return nil
	}
	if sc, ok := field.(sql.Scanner); ok {
		return sc.Scan(v)
	}
	return field.SetValue(v, true)
}

// All executes the select and returns the merged, distinct root objects
// in row order, running any prefetches afterwards.
func (qs *QuerySet[T]) All(ctx context.Context) ([]T, error) {
	if qs.err != nil {
		return nil, qs.err
	}

	var infos, joins, err = qs.solveQuery()
	if err != nil {
		return nil, err
	}

	var hasMulti = hasMultiRelation(infos)
	var sqlLimit, sqlOffset = qs.limit, qs.offset
	if hasMulti && !qs.limitRawSQL {
		// limit counts root objects, not physical rows; trim after merge
		sqlLimit, sqlOffset = 0, 0
	}

	var query = qs.compiler.BuildSelectQuery(
		ctx, infos, qs.whereClause(), joins,
		qs.orderBy, sqlLimit, sqlOffset, false,
	)

	results, err := query.Exec()
	if err != nil {
		return nil, err
	}

	var merged = newRows[T]()
	for _, row := range results {
		chains, err := qs.scanRow(infos, row)
		if err != nil {
			return nil, err
		}
		for _, chain := range chains {
			merged.addObject(chain)
		}
	}

	var list = merged.compile()
	if hasMulti && !qs.limitRawSQL {
		if qs.offset > 0 {
			if qs.offset >= len(list) {
				list = list[:0]
			} else {
				list = list[qs.offset:]
			}
		}
		if qs.limit > 0 && qs.limit < len(list) {
			list = list[:qs.limit]
		}
	}

	if len(qs.prefetch) > 0 {
		if err := qs.execPrefetch(ctx, list); err != nil {
			return nil, err
		}
	}

	return list, nil
}

// withArgs folds the loose `Get(ctx, args...)` calling convention into
// extra filters on a clone of the queryset.
func (qs *QuerySet[T]) withArgs(args []any) *QuerySet[T] {
	if len(args) == 0 {
		return qs
	}
	if len(args) == 1 {
		return qs.Filter(args[0])
	}
	return qs.Filter(args[0], args[1:]...)
}

// Get returns exactly one object.
//
// Called with filters (or on an already filtered queryset) it requires
// exactly one match: no rows is ErrNoResults, more than one is
// ErrMultipleRows. Called with no filters at all it returns the last
// object by primary key.
func (qs *QuerySet[T]) Get(ctx context.Context, args ...any) (T, error) {
	var nqs = qs.withArgs(args)
	if nqs.err != nil {
		return *new(T), nqs.err
	}

	if len(nqs.filters) == 0 && len(nqs.excludes) == 0 {
		var list, err = nqs.OrderBy("-" + nqs.queryInfo.Primary.Name()).Limit(1).All(ctx)
		if err != nil {
			return *new(T), err
		}
		if len(list) == 0 {
			return *new(T), query_errors.ErrNoResults
		}
		return list[0], nil
	}

	var list, err = nqs.Limit(2).All(ctx)
	if err != nil {
		return *new(T), err
	}

	switch len(list) {
	case 0:
		return *new(T), query_errors.ErrNoResults
	case 1:
		return list[0], nil
	default:
		return *new(T), query_errors.ErrMultipleRows
	}
}

// First returns the first object, ordered by primary key unless an
// explicit ordering was set.
func (qs *QuerySet[T]) First(ctx context.Context, args ...any) (T, error) {
	var nqs = qs.withArgs(args)
	if nqs.err != nil {
		return *new(T), nqs.err
	}

	if len(nqs.orderBy) == 0 {
		nqs = nqs.OrderBy(nqs.queryInfo.Primary.Name())
	}

	var list, err = nqs.Limit(1).All(ctx)
	if err != nil {
		return *new(T), err
	}
	if len(list) == 0 {
		return *new(T), query_errors.ErrNoResults
	}
	return list[0], nil
}

// Last returns the last object under the reversed ordering.
func (qs *QuerySet[T]) Last(ctx context.Context, args ...any) (T, error) {
	var nqs = qs.withArgs(args)
	if nqs.err != nil {
		return *new(T), nqs.err
	}

	if len(nqs.orderBy) == 0 {
		nqs = nqs.OrderBy(nqs.queryInfo.Primary.Name())
	}

	return nqs.Reverse().First(ctx)
}

// Exists reports whether any row matches the queryset.
func (qs *QuerySet[T]) Exists(ctx context.Context) (bool, error) {
	if qs.err != nil {
		return false, qs.err
	}
	var _, joins, err = qs.solveQuery()
	if err != nil {
		return false, err
	}
	return qs.compiler.BuildExistsQuery(ctx, qs.whereClause(), joins).Exec()
}

// Count returns the number of distinct root objects matching the
// queryset, honoring limit and offset.
func (qs *QuerySet[T]) Count(ctx context.Context) (int64, error) {
	if qs.err != nil {
		return 0, qs.err
	}
	var _, joins, err = qs.solveQuery()
	if err != nil {
		return 0, err
	}
	return qs.compiler.BuildCountQuery(
		ctx, qs.whereClause(), joins, qs.limit, qs.offset,
	).Exec()
}

// createFields resolves the insertable fields and values of an object.
//
// A zero primary key is treated as unset and left to the database;
// a nil value falls back to the field default and is deferred to the
// database when one exists server-side.
func createFields(obj attrs.Definer) (fields []attrs.Field, values []any, deferred []string, err error) {
	var defs = obj.FieldDefs()
	for _, f := range defs.Fields() {
		if f.ColumnName() == "" || !ForSelectAll(f) {
			continue
		}
		if f.IsPrimary() && isZero(f.GetValue()) {
			continue
		}

		val, verr := f.Value()
		if verr != nil {
			return nil, nil, nil, errors.Wrapf(verr, "failed to get value of %q", f.Name())
		}

		if val == nil {
			if f.GetDefault() != nil {
				deferred = append(deferred, f.Name())
				continue
			}
			if !f.AllowNull() {
				return nil, nil, nil, errors.Wrapf(
					query_errors.ErrFieldNull,
					"field %q of %T cannot be null", f.Name(), obj,
				)
			}
		}

		fields = append(fields, f)
		values = append(values, val)
	}
	return fields, values, deferred, nil
}

// Create inserts the object, backfills the primary key and any
// database-generated column values, and flags the object as saved.
func (qs *QuerySet[T]) Create(ctx context.Context, obj T) (T, error) {
	if qs.err != nil {
		return *new(T), qs.err
	}

	if err := SignalPreModelSave.Send(SignalSave{
		Instance: obj,
		Using:    qs.compiler,
	}); err != nil {
		return *new(T), err
	}

	var defs = obj.FieldDefs()
	var primary = defs.Primary()

	var fields, values, deferred, err = createFields(obj)
	if err != nil {
		return *new(T), err
	}

	var support = qs.compiler.SupportsReturning()
	var query = qs.compiler.BuildCreateQuery(ctx, primary, fields, values)

	result, err := query.Exec()
	if err != nil {
		return *new(T), err
	}

	switch support {
	case SupportsReturningLastInsertId:
		if len(result) == 0 {
			return *new(T), query_errors.ErrLastInsertId
		}
		if primary != nil && isZero(primary.GetValue()) {
			if err := assignField(primary, result[0]); err != nil {
				return *new(T), err
			}
		}

	case SupportsReturningColumns:
		var idx = 0
		if primary != nil {
			if err := assignField(primary, result[idx]); err != nil {
				return *new(T), err
			}
			idx++
		}
		for _, f := range fields {
			if err := assignField(f, result[idx]); err != nil {
				return *new(T), err
			}
			idx++
		}
	}

	if len(deferred) > 0 && support != SupportsReturningColumns {
		if err := qs.reloadFields(ctx, obj, deferred); err != nil {
			return *new(T), err
		}
	}

	if s, ok := any(obj).(SaveableModel); ok {
		s.SetSaved(true)
	}

	if err := SignalPostModelSave.Send(SignalSave{
		Instance: obj,
		Using:    qs.compiler,
	}); err != nil {
		return *new(T), err
	}

	return obj, nil
}

// reloadFields fetches the object's row again and copies the named
// field values onto obj. Used for database-generated defaults on
// dialects without column returning.
func (qs *QuerySet[T]) reloadFields(ctx context.Context, obj T, names []string) error {
	var defs = obj.FieldDefs()
	var primary = defs.Primary()
	if primary == nil || isZero(primary.GetValue()) {
		return nil
	}

	fresh, err := Objects[T](obj, qs.database).
		Filter(primary.Name(), primary.GetValue()).
		First(ctx)
	if err != nil {
		return err
	}

	var freshDefs = fresh.FieldDefs()
	for _, name := range names {
		var f, ok = freshDefs.Field(name)
		if !ok {
			continue
		}
		defs.Set(name, f.GetValue())
	}
	return nil
}

// Update writes the given values to every row matching the queryset and
// returns the number of rows affected.
//
// An unfiltered update is refused unless AllRows was called; the key
// "pk" aliases the primary key and attrs.Definer values collapse to
// their primary key.
func (qs *QuerySet[T]) Update(ctx context.Context, values map[string]any) (int64, error) {
	if qs.err != nil {
		return 0, qs.err
	}
	if err := qs.requireWhere(); err != nil {
		return 0, err
	}

	var defs = qs.queryInfo.Definitions
	var fields = make([]attrs.Field, 0, len(values))
	var vals = make([]any, 0, len(values))

	for name, value := range values {
		if name == "pk" {
			name = qs.queryInfo.Primary.Name()
		}
		var field, ok = defs.Field(name)
		if !ok {
			return 0, errors.Wrapf(
				query_errors.ErrFieldNotFound,
				"field %q not found in %T", name, qs.model,
			)
		}
		if d, ok := value.(attrs.Definer); ok {
			value = d.FieldDefs().Primary().GetValue()
		}
		fields = append(fields, field)
		vals = append(vals, value)
	}

	return qs.compiler.BuildUpdateQuery(ctx, fields, vals, qs.whereClause()).Exec()
}

// Delete removes every row matching the queryset and returns the number
// of rows deleted. An unfiltered delete is refused unless AllRows was
// called.
func (qs *QuerySet[T]) Delete(ctx context.Context, args ...any) (int64, error) {
	var nqs = qs.withArgs(args)
	if nqs.err != nil {
		return 0, nqs.err
	}
	if err := nqs.requireWhere(); err != nil {
		return 0, err
	}
	return nqs.compiler.BuildDeleteQuery(ctx, nqs.whereClause()).Exec()
}

// instanceFromKwargs builds a fresh model instance from plain field
// keys, skipping lookup expressions.
func (qs *QuerySet[T]) instanceFromKwargs(kwargs map[string]any) T {
	var obj = internal.NewObjectFromIface(qs.model).(T)
	var defs = obj.FieldDefs()
	for name, value := range kwargs {
		if strings.Contains(name, "__") || strings.Contains(name, ".") {
			continue
		}
		if name == "pk" {
			name = qs.queryInfo.Primary.Name()
		}
		defs.Set(name, value)
	}
	return obj
}

// GetOrCreate returns the object matching kwargs, creating it from the
// plain field keys when no match exists. The boolean reports whether a
// new object was created.
func (qs *QuerySet[T]) GetOrCreate(ctx context.Context, kwargs map[string]any) (T, bool, error) {
	var obj, err = qs.Get(ctx, kwargs)
	if err == nil {
		return obj, false, nil
	}
	if !errors.Is(err, query_errors.ErrNoResults) {
		return *new(T), false, err
	}

	created, err := qs.Create(ctx, qs.instanceFromKwargs(kwargs))
	if err != nil {
		return *new(T), false, err
	}
	return created, true, nil
}

// UpdateOrCreate creates the object when kwargs carry no primary key,
// otherwise updates the existing row with the remaining values and
// returns the fresh object.
func (qs *QuerySet[T]) UpdateOrCreate(ctx context.Context, kwargs map[string]any) (T, error) {
	var pkName = qs.queryInfo.Primary.Name()
	var pkVal, ok = kwargs[pkName]
	if !ok {
		pkVal, ok = kwargs["pk"]
	}

	if !ok || isZero(pkVal) {
		return qs.Create(ctx, qs.instanceFromKwargs(kwargs))
	}

	var values = make(map[string]any, len(kwargs))
	for name, value := range kwargs {
		if name == pkName || name == "pk" {
			continue
		}
		values[name] = value
	}

	if len(values) > 0 {
		if _, err := qs.Filter(pkName, pkVal).Update(ctx, values); err != nil {
			return *new(T), err
		}
	}

	return qs.Get(ctx, pkName, pkVal)
}

// BulkCreate inserts all objects in a single statement.
//
// No save signals are sent; primary keys are backfilled on dialects
// with column returning.
func (qs *QuerySet[T]) BulkCreate(ctx context.Context, objs []T) ([]T, error) {
	if qs.err != nil {
		return nil, qs.err
	}
	if len(objs) == 0 {
		return objs, nil
	}

	// the field list must be uniform across all rows, resolve it once
	var defs = objs[0].FieldDefs()
	var fields = make([]attrs.Field, 0)
	for _, f := range defs.Fields() {
		if f.ColumnName() == "" || !ForSelectAll(f) || f.IsPrimary() {
			continue
		}
		fields = append(fields, f)
	}

	var values = make([][]any, 0, len(objs))
	for _, obj := range objs {
		var objDefs = obj.FieldDefs()
		var row = make([]any, 0, len(fields))
		for _, f := range fields {
			var field, _ = objDefs.Field(f.Name())
			val, err := field.Value()
			if err != nil {
				return nil, errors.Wrapf(err, "failed to get value of %q", f.Name())
			}
			if val == nil {
				if field.GetDefault() != nil {
					val = field.GetDefault()
				} else if !field.AllowNull() {
					return nil, errors.Wrapf(
						query_errors.ErrFieldNull,
						"field %q of %T cannot be null", f.Name(), obj,
					)
				}
			}
			row = append(row, val)
		}
		values = append(values, row)
	}

	var primary = defs.Primary()
	var pks, err = qs.compiler.BuildBulkCreateQuery(ctx, primary, fields, values).Exec()
	if err != nil {
		return nil, err
	}

	for i, obj := range objs {
		if i < len(pks) {
			var objPrimary = obj.FieldDefs().Primary()
			if err := assignField(objPrimary, pks[i]); err != nil {
				return nil, err
			}
		}
		if s, ok := any(obj).(SaveableModel); ok {
			s.SetSaved(true)
		}
	}

	return objs, nil
}

// BulkUpdate writes the given fields of all objects in one prepared
// statement executed per row, returning the total rows affected.
//
// Every object must already be persisted; a zero primary key fails the
// whole batch before any write. No save signals are sent.
func (qs *QuerySet[T]) BulkUpdate(ctx context.Context, objs []T, fieldNames ...string) (int64, error) {
	if qs.err != nil {
		return 0, qs.err
	}
	if len(objs) == 0 {
		return 0, nil
	}

	var pks = make([]any, 0, len(objs))
	for _, obj := range objs {
		var primary = obj.FieldDefs().Primary()
		var pk = primary.GetValue()
		if isZero(pk) {
			return 0, errors.Wrapf(
				query_errors.ErrObjectNotSaved,
				"cannot bulk update %T without a primary key", obj,
			)
		}
		pks = append(pks, pk)
	}

	var defs = objs[0].FieldDefs()
	var fields = make([]attrs.Field, 0)
	if len(fieldNames) > 0 {
		for _, name := range fieldNames {
			var field, ok = defs.Field(name)
			if !ok {
				return 0, errors.Wrapf(
					query_errors.ErrFieldNotFound,
					"field %q not found in %T", name, objs[0],
				)
			}
			if field.IsPrimary() {
				continue
			}
			fields = append(fields, field)
		}
	} else {
		for _, f := range defs.Fields() {
			if f.ColumnName() == "" || !ForSelectAll(f) || f.IsPrimary() || !f.AllowEdit() {
				continue
			}
			fields = append(fields, f)
		}
	}

	var rows = make([][]any, 0, len(objs))
	for _, obj := range objs {
		var objDefs = obj.FieldDefs()
		var row = make([]any, 0, len(fields))
		for _, f := range fields {
			var field, _ = objDefs.Field(f.Name())
			val, err := field.Value()
			if err != nil {
				return 0, errors.Wrapf(err, "failed to get value of %q", f.Name())
			}
			row = append(row, val)
		}
		rows = append(rows, row)
	}

	var primary = qs.queryInfo.Primary
	return qs.compiler.BuildBulkUpdateQuery(ctx, primary, fields, rows, pks).Exec()
}
