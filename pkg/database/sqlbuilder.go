package database

import (
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func NewSelectBuilder() *sqlbuilder.SelectBuilder {
	return sqlbuilder.PostgreSQL.NewSelectBuilder()
}

func NewInsertBuilder() *sqlbuilder.InsertBuilder {
	return sqlbuilder.PostgreSQL.NewInsertBuilder()
}

func NewUpdateBuilder() *sqlbuilder.UpdateBuilder {
	return sqlbuilder.PostgreSQL.NewUpdateBuilder()
}

// Contains builds a LIKE pattern matching value anywhere, with LIKE
// metacharacters in value escaped.
func Contains(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}
