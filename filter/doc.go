// Package filter builds typed row predicates for vector searches and encodes
// them to SQL.
//
// Predicates restrict the candidate rows before ranking. Unlike raw SQL
// passed to Query.Where, values in a predicate are always rendered as
// escaped literals and column names as quoted identifiers, so they are
// safe to build from user input.
//
// # Basic Usage
//
//	pred := filter.And(
//	    filter.Eq(filter.Col("category"), filter.Lit("news")),
//	    filter.Ge(filter.Col("published"), filter.Lit(2023)),
//	)
//
//	tbl, err := db.OpenTable("docs").
//	    Search(vec).
//	    Filter(pred).
//	    Limit(10).
//	    ToArrow(ctx)
//
// # Encoding
//
// Executors encode predicates with the dialect of their backend:
//
//	enc := filter.NewEncoder(sqlgen.Doris{})
//	where, err := enc.Encode(pred)
//	// (`category` = 'news' AND `published` >= 2023)
//
// # Expression Types
//
//   - ComparisonExpression: =, <>, <, >, <=, >=, LIKE, NOT LIKE
//   - InExpression: IN and NOT IN over a value list
//   - BetweenExpression: BETWEEN lower AND upper
//   - ConjunctionExpression: AND/OR with multiple children
//   - OperatorExpression: NOT, IS NULL, IS NOT NULL
//   - ConstantExpression: literal values (bool, integer, float, text, NULL)
//   - ColumnRefExpression: references to table columns
package filter
