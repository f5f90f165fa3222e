package queries

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Nigel2392/go-django-queryset/internal"
	"github.com/Nigel2392/go-django-queryset/src/query_errors"
	"github.com/Nigel2392/go-django/src/core/attrs"
	"github.com/pkg/errors"
)

// FieldInfo describes one table of the select: the model it scans into,
// the join alias it is selected under and the concrete fields to select.
//
// The first FieldInfo of a query is always the root model; every related
// chain prefix gets its own FieldInfo so intermediate objects of a nested
// path can be instantiated while scanning.
type FieldInfo struct {
	SourceField attrs.Field
	Model       attrs.Definer
	RelType     attrs.RelationType
	Table       string
	TableAlias  string
	Chain       []string
	Fields      []attrs.Field
}

// WriteFields writes the quoted column list of this info to sb.
func (i *FieldInfo) WriteFields(sb *strings.Builder, quote string) {
	var alias = i.TableAlias
	if alias == "" {
		alias = i.Table
	}
	for idx, f := range i.Fields {
		if idx > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(
			sb, "%s%s%s.%s%s%s",
			quote, alias, quote,
			quote, f.ColumnName(), quote,
		)
	}
}

// maskedFields resolves the selectable fields of a model level against the
// include and exclude masks.
//
// Fields without a column and relation-only fields are never selected; the
// primary key is always selected so rows can be merged and related objects
// attached.
func maskedFields(defs attrs.Definitions, include, exclude *FieldMask) []attrs.Field {
	var fields = defs.Fields()
	var out = make([]attrs.Field, 0, len(fields))
	for _, f := range fields {
		if f.ColumnName() == "" || !ForSelectAll(f) {
			continue
		}
		if f.IsPrimary() {
			out = append(out, f)
			continue
		}
		if !include.covers(f.Name()) {
			continue
		}
		if exclude.Has(f.Name()) && f.AllowNull() {
			continue
		}
		out = append(out, f)
	}
	return out
}

// relationTargetField resolves the column a relation matches on at the
// target side of the join, falling back to the target's primary key.
func relationTargetField(f attrs.Field, target attrs.Definer) attrs.Field {
	if rf, ok := f.(RelatedField); ok {
		if tf := rf.GetTargetField(); tf != nil {
			return tf
		}
	}
	if rel := f.Rel(); rel != nil {
		if tf, ok := rel.Field().(attrs.Field); ok && tf != nil {
			return tf
		}
	}
	return target.FieldDefs().Primary()
}

// solveQuery turns the select-related set into the per-table field infos
// and the LEFT JOIN list of the select.
//
// Every prefix of a nested path becomes its own join and FieldInfo, so a
// path like `Author.Publisher` joins both tables exactly once even when
// `Author` was also requested on its own.
func (qs *QuerySet[T]) solveQuery() ([]*FieldInfo, []JoinDef, error) {
	var quote = qs.compiler.Quote()
	var infos = make([]*FieldInfo, 0, len(qs.related)+1)
	var joins = make([]JoinDef, 0, len(qs.related))
	var seen = make(map[string]*FieldInfo, len(qs.related))

	infos = append(infos, &FieldInfo{
		Model:  qs.model,
		Table:  qs.queryInfo.TableName,
		Fields: maskedFields(qs.queryInfo.Definitions, qs.include, qs.exclude),
	})

	for _, path := range qs.related {
		var parent attrs.Definer = qs.model
		var parentAlias = qs.queryInfo.TableName
		var chain = make([]string, 0, strings.Count(path, ".")+1)

		for _, part := range strings.Split(path, ".") {
			chain = append(chain, part)
			var key = strings.Join(chain, ".")
			if info, ok := seen[key]; ok {
				parent = info.Model
				parentAlias = info.TableAlias
				continue
			}

			var parentDefs = parent.FieldDefs()
			var field, ok = parentDefs.Field(part)
			if !ok {
				return nil, nil, errors.Wrapf(
					query_errors.ErrFieldNotFound,
					"field %q not found in %T", part, parent,
				)
			}

			var target, relTyp, isRel = internal.RelatedModel(field)
			if !isRel || target == nil {
				return nil, nil, errors.Wrapf(
					query_errors.ErrFieldNotFound,
					"field %q of %T is not a relation", part, parent,
				)
			}
			target = internal.NewObjectFromIface(target)

			var targetDefs = target.FieldDefs()
			var alias = internal.NewJoinAlias(field, parentDefs.TableName(), chain)
			var targetCol = relationTargetField(field, target).ColumnName()

			var condA string
			switch relTyp {
			case attrs.RelManyToOne, attrs.RelOneToOne:
				condA = fmt.Sprintf(
					"%s%s%s.%s%s%s",
					quote, parentAlias, quote,
					quote, field.ColumnName(), quote,
				)
			case attrs.RelOneToMany:
				condA = fmt.Sprintf(
					"%s%s%s.%s%s%s",
					quote, parentAlias, quote,
					quote, parentDefs.Primary().ColumnName(), quote,
				)
			default:
				return nil, nil, errors.Wrapf(
					query_errors.ErrNotImplemented,
					"relation type %v of field %q", relTyp, part,
				)
			}

			joins = append(joins, JoinDef{
				Table:      targetDefs.TableName(),
				Alias:      alias,
				TypeJoin:   "LEFT JOIN",
				ConditionA: condA,
				Logic:      "=",
				ConditionB: fmt.Sprintf(
					"%s%s%s.%s%s%s",
					quote, alias, quote,
					quote, targetCol, quote,
				),
			})

			var info = &FieldInfo{
				SourceField: field,
				Model:       target,
				RelType:     relTyp,
				Table:       targetDefs.TableName(),
				TableAlias:  alias,
				Chain:       slices.Clone(chain),
				Fields: maskedFields(
					targetDefs,
					qs.include.ChildAt(chain),
					qs.exclude.ChildAt(chain),
				),
			}
			seen[key] = info
			infos = append(infos, info)

			parent = target
			parentAlias = alias
		}
	}

	return infos, joins, nil
}

// hasMultiRelation reports whether any joined chain can fan the root
// object out over multiple physical rows.
func hasMultiRelation(infos []*FieldInfo) bool {
	for _, info := range infos {
		switch info.RelType {
		case attrs.RelOneToMany, attrs.RelManyToMany:
			return true
		}
	}
	return false
}

// scanRow materializes one physical result row into model instances,
// one per field info, and links them up as chain parts for merging.
//
// Raw NULL values are skipped, leaving the field at its zero value; a
// joined object whose primary key came back zero is a LEFT JOIN miss and
// truncates its chain.
func (qs *QuerySet[T]) scanRow(infos []*FieldInfo, row []any) ([][]chainPart, error) {
	var instances = make(map[string]attrs.Definer, len(infos))
	var pos = 0

	for _, info := range infos {
		var inst = internal.NewObjectFromIface(info.Model)
		var defs = inst.FieldDefs()
		for _, f := range info.Fields {
			var v = row[pos]
			pos++
			if v == nil {
				continue
			}

			var field, ok = defs.Field(f.Name())
			if !ok {
				return nil, errors.Wrapf(
					query_errors.ErrFieldNotFound,
					"field %q not found in %T", f.Name(), inst,
				)
			}

			// a raw foreign key value becomes a stub object holding
			// only the primary key; a join on the same chain replaces
			// it with the full object during merging
			if target, _, isRel := internal.RelatedModel(field); isRel && target != nil {
				if _, isDefiner := v.(attrs.Definer); !isDefiner {
					var stub = internal.NewObjectFromIface(target)
					if err := assignField(stub.FieldDefs().Primary(), v); err != nil {
						return nil, err
					}
					v = stub
				}
			}

			if err := assignField(field, v); err != nil {
				return nil, err
			}
		}
		instances[strings.Join(info.Chain, ".")] = inst
	}

	var rootInst = instances[""]
	var rootPart = chainPart{
		pk:     rootInst.FieldDefs().Primary().GetValue(),
		object: rootInst,
	}

	var chains = make([][]chainPart, 0, len(infos))
	if len(infos) == 1 {
		return append(chains, []chainPart{rootPart}), nil
	}

	for _, info := range infos[1:] {
		var parts = make([]chainPart, 0, len(info.Chain)+1)
		parts = append(parts, rootPart)
		for i := range info.Chain {
			var key = strings.Join(info.Chain[:i+1], ".")
			var inst = instances[key]
			var pk = inst.FieldDefs().Primary().GetValue()
			if isZero(pk) {
				break
			}
			parts = append(parts, chainPart{
				relTyp: qs.relTypeAt(infos, key),
				chain:  info.Chain[i],
				pk:     pk,
				object: inst,
			})
		}
		chains = append(chains, parts)
	}

	return chains, nil
}

func (qs *QuerySet[T]) relTypeAt(infos []*FieldInfo, key string) attrs.RelationType {
	for _, info := range infos[1:] {
		if strings.Join(info.Chain, ".") == key {
			return info.RelType
		}
	}
	var none attrs.RelationType
	return none
}
