package queries

import (
	"slices"
	"strings"

	"github.com/Nigel2392/go-django-queryset/internal"
	"github.com/Nigel2392/go-django-queryset/src/expr"
	"github.com/Nigel2392/go-django-queryset/src/query_errors"
	"github.com/Nigel2392/go-django/src/core/attrs"
	"github.com/pkg/errors"
)

// -----------------------------------------------------------------------------
// QuerySet
// -----------------------------------------------------------------------------

type JoinDef struct {
	Table      string
	Alias      string
	TypeJoin   string
	ConditionA string
	Logic      string
	ConditionB string
}

type OrderBy struct {
	Path  string
	Table string
	Alias string
	Field string
	Desc  bool
}

// QuerySet is an immutable query descriptor over a model type.
//
// Every mutator clones the descriptor before changing it, so deriving a
// new queryset never affects the one it was derived from. Nothing touches
// the database until a terminal operation is called.
type QuerySet[T attrs.Definer] struct {
	model       T
	database    string
	compiler    QueryCompiler
	queryInfo   *internal.QueryInfo
	filters     []expr.Expression
	excludes    []expr.Expression
	related     []string
	prefetch    []string
	include     *FieldMask
	exclude     *FieldMask
	orderBy     []OrderBy
	limit       int
	offset      int
	limitRawSQL bool
	allRows     bool
	err         error
}

// Objects returns a new queryset for the given model.
//
// The optional database argument selects a connection registered with
// [RegisterDatabase]; it defaults to [DefaultDatabase].
func Objects[T attrs.Definer](model T, database ...string) *QuerySet[T] {
	var dbKey = internal.DefaultDatabase
	if len(database) > 0 && database[0] != "" {
		dbKey = database[0]
	}

	var queryInfo, err = internal.GetQueryInfo(model, dbKey)
	if err != nil {
		panic(err)
	}

	return &QuerySet[T]{
		model:     model,
		database:  dbKey,
		queryInfo: queryInfo,
		compiler:  Compiler(model, dbKey),
		filters:   make([]expr.Expression, 0),
		excludes:  make([]expr.Expression, 0),
		orderBy:   make([]OrderBy, 0),
	}
}

func (qs *QuerySet[T]) Model() attrs.Definer {
	return qs.model
}

func (qs *QuerySet[T]) Compiler() QueryCompiler {
	return qs.compiler
}

func (qs *QuerySet[T]) DatabaseName() string {
	return qs.database
}

func (qs *QuerySet[T]) Clone() *QuerySet[T] {
	return &QuerySet[T]{
		model:       qs.model,
		database:    qs.database,
		compiler:    qs.compiler,
		queryInfo:   qs.queryInfo,
		filters:     slices.Clone(qs.filters),
		excludes:    slices.Clone(qs.excludes),
		related:     slices.Clone(qs.related),
		prefetch:    slices.Clone(qs.prefetch),
		include:     qs.include.Clone(),
		exclude:     qs.exclude.Clone(),
		orderBy:     slices.Clone(qs.orderBy),
		limit:       qs.limit,
		offset:      qs.offset,
		limitRawSQL: qs.limitRawSQL,
		allRows:     qs.allRows,
		err:         qs.err,
	}
}

func (qs *QuerySet[T]) fail(err error) *QuerySet[T] {
	if qs.err == nil {
		qs.err = err
	}
	return qs
}

// addRelatedPath records the relation chain of a field path so the
// compiler joins it, deduplicating on first-seen order.
func (qs *QuerySet[T]) addRelatedPath(path string) {
	if path == "" || slices.Contains(qs.related, path) {
		return
	}
	qs.related = append(qs.related, path)
}

// extendRelated walks the field paths referenced by new expressions and
// adds any crossed relation chains to the select-related set.
func (qs *QuerySet[T]) extendRelated(exprs []expr.Expression) error {
	for _, e := range exprs {
		var named, ok = e.(interface{ FieldName() string })
		if !ok {
			continue
		}
		var _, _, _, chain, _, _, isRelated, err = internal.WalkFields(qs.model, named.FieldName())
		if err != nil {
			return errors.Wrapf(query_errors.ErrFieldNotFound, "%s", err)
		}
		if isRelated {
			qs.addRelatedPath(strings.Join(chain, "."))
		}
	}
	return nil
}

// Filter restricts the queryset with one or more conditions.
//
// key may be a `field__lookup` string, an expr.Expression, or a
// map[string]any; relation paths in the key automatically extend the
// select-related set.
func (qs *QuerySet[T]) Filter(key interface{}, vals ...interface{}) *QuerySet[T] {
	var nqs = qs.Clone()
	var exprs = expr.Express(key, vals...)
	if err := nqs.extendRelated(exprs); err != nil {
		return nqs.fail(err)
	}
	nqs.filters = append(nqs.filters, exprs...)
	return nqs
}

// Exclude removes rows matching all given conditions.
//
// The conditions of a single Exclude call are ANDed together and the
// conjunction is negated as a whole: NOT (c1 AND c2 AND ...).
func (qs *QuerySet[T]) Exclude(key interface{}, vals ...interface{}) *QuerySet[T] {
	var nqs = qs.Clone()
	var exprs = expr.Express(key, vals...)
	if err := nqs.extendRelated(exprs); err != nil {
		return nqs.fail(err)
	}
	nqs.excludes = append(nqs.excludes, exprs...)
	return nqs
}

// SelectRelated joins the given relation paths into the main query so the
// related objects are loaded in the same round trip.
func (qs *QuerySet[T]) SelectRelated(paths ...string) *QuerySet[T] {
	var nqs = qs.Clone()
	for _, path := range paths {
		var _, _, field, chain, _, _, _, err = internal.WalkFields(qs.model, path)
		if err != nil {
			return nqs.fail(errors.Wrapf(query_errors.ErrFieldNotFound, "%s", err))
		}

		// the final path part must itself be a relation
		if _, _, ok := internal.RelatedModel(field); !ok {
			return nqs.fail(errors.Wrapf(
				query_errors.ErrFieldNotFound,
				"field %q of path %q is not a relation", field.Name(), path,
			))
		}

		nqs.addRelatedPath(strings.Join(append(chain, field.Name()), "."))
	}
	return nqs
}

// PrefetchRelated loads the given relation paths in separate follow-up
// queries after the main result set is materialized.
func (qs *QuerySet[T]) PrefetchRelated(paths ...string) *QuerySet[T] {
	var nqs = qs.Clone()
	for _, path := range paths {
		var _, _, field, _, _, _, _, err = internal.WalkFields(qs.model, path)
		if err != nil {
			return nqs.fail(errors.Wrapf(query_errors.ErrFieldNotFound, "%s", err))
		}
		if _, _, ok := internal.RelatedModel(field); !ok {
			return nqs.fail(errors.Wrapf(
				query_errors.ErrFieldNotFound,
				"field %q of path %q is not a relation", field.Name(), path,
			))
		}
		if !slices.Contains(nqs.prefetch, path) {
			nqs.prefetch = append(nqs.prefetch, path)
		}
	}
	return nqs
}

// Fields narrows the selected columns to the given fields.
//
// Selections accept strings, []string and nested maps; repeated calls
// union. The primary key is always selected regardless of the mask.
func (qs *QuerySet[T]) Fields(selections ...any) *QuerySet[T] {
	var nqs = qs.Clone()
	if nqs.include == nil {
		nqs.include = NewFieldMask()
	}
	nqs.include.Add(selections...)
	return nqs
}

// ExcludeFields drops the given fields from the selected columns.
//
// The primary key and non-nullable fields cannot be dropped; trying to
// exclude a required field fails the queryset.
func (qs *QuerySet[T]) ExcludeFields(selections ...any) *QuerySet[T] {
	var nqs = qs.Clone()
	if nqs.exclude == nil {
		nqs.exclude = NewFieldMask()
	}
	nqs.exclude.Add(selections...)

	if err := nqs.validateExcludeMask(nqs.exclude, qs.model); err != nil {
		return nqs.fail(err)
	}
	return nqs
}

func (qs *QuerySet[T]) validateExcludeMask(mask *FieldMask, model attrs.Definer) error {
	if mask == nil {
		return nil
	}
	var defs = model.FieldDefs()
	for _, name := range mask.Leaves() {
		var field, ok = defs.Field(name)
		if !ok {
			return errors.Wrapf(query_errors.ErrFieldNotFound, "field %q not found in %T", name, model)
		}
		if field.IsPrimary() {
			continue // pk is always kept, excluding it is a no-op
		}
		if !field.AllowNull() {
			return errors.Wrapf(
				query_errors.ErrFieldNull,
				"field %q is required and cannot be excluded", name,
			)
		}
	}
	for name, child := range mask.children {
		var field, ok = defs.Field(name)
		if !ok {
			return errors.Wrapf(query_errors.ErrFieldNotFound, "field %q not found in %T", name, model)
		}
		var target, _, isRel = internal.RelatedModel(field)
		if !isRel {
			return errors.Wrapf(query_errors.ErrFieldNotFound, "field %q is not a relation", name)
		}
		if err := qs.validateExcludeMask(child, target); err != nil {
			return err
		}
	}
	return nil
}

// OrderBy appends ordering fields; a `-` prefix orders descending.
//
// A path already present (with or without prefix) keeps its first
// occurrence and later duplicates are skipped.
func (qs *QuerySet[T]) OrderBy(fields ...string) *QuerySet[T] {
	var nqs = qs.Clone()

	for _, field := range fields {
		var ord = strings.TrimSpace(field)
		var desc = false
		if strings.HasPrefix(ord, "-") {
			desc = true
			ord = strings.TrimPrefix(ord, "-")
		}

		if slices.ContainsFunc(nqs.orderBy, func(o OrderBy) bool { return o.Path == ord }) {
			continue
		}

		var obj, _, fld, chain, aliases, _, isRelated, err = internal.WalkFields(
			qs.model, ord,
		)
		if err != nil {
			return nqs.fail(errors.Wrapf(query_errors.ErrFieldNotFound, "%s", err))
		}

		var alias string
		if len(aliases) > 0 {
			alias = aliases[len(aliases)-1]
		}
		if isRelated {
			nqs.addRelatedPath(strings.Join(chain, "."))
		}

		var defs = obj.FieldDefs()
		nqs.orderBy = append(nqs.orderBy, OrderBy{
			Path:  ord,
			Table: defs.TableName(),
			Alias: alias,
			Field: fld.ColumnName(),
			Desc:  desc,
		})
	}

	return nqs
}

// Reverse flips the direction of every ordering field.
func (qs *QuerySet[T]) Reverse() *QuerySet[T] {
	var nqs = qs.Clone()
	var ordBy = make([]OrderBy, 0, len(nqs.orderBy))
	for _, ord := range nqs.orderBy {
		ord.Desc = !ord.Desc
		ordBy = append(ordBy, ord)
	}
	nqs.orderBy = ordBy
	return nqs
}

func (qs *QuerySet[T]) Limit(n int) *QuerySet[T] {
	var nqs = qs.Clone()
	nqs.limit = n
	return nqs
}

func (qs *QuerySet[T]) Offset(n int) *QuerySet[T] {
	var nqs = qs.Clone()
	nqs.offset = n
	return nqs
}

// LimitRawSQL switches limit and offset to counting physical result rows
// instead of distinct root objects.
//
// With a to-many join in place one root object can span several physical
// rows; by default limit/offset are applied after those rows are merged.
func (qs *QuerySet[T]) LimitRawSQL(b bool) *QuerySet[T] {
	var nqs = qs.Clone()
	nqs.limitRawSQL = b
	return nqs
}

// AllRows marks the queryset as intentionally unfiltered, allowing
// Update and Delete to touch every row of the table.
func (qs *QuerySet[T]) AllRows() *QuerySet[T] {
	var nqs = qs.Clone()
	nqs.allRows = true
	return nqs
}

// whereClause combines filters and excludes into the final condition
// list: filters ANDed as-is, excludes as a negated conjunction.
func (qs *QuerySet[T]) whereClause() []expr.Expression {
	var where = make([]expr.Expression, 0, len(qs.filters)+1)
	where = append(where, qs.filters...)
	if len(qs.excludes) > 0 {
		where = append(where, expr.And(qs.excludes...).Not(true))
	}
	return where
}

func (qs *QuerySet[T]) requireWhere() error {
	if len(qs.filters) == 0 && len(qs.excludes) == 0 && !qs.allRows {
		return query_errors.ErrNoWhereClause
	}
	return nil
}
