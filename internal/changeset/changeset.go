// Package changeset turns structural differences into ordered, phased
// migration operations with up and down statements.
package changeset

import (
	"strings"
)

// Phase groups changesets by rollout stage.
type Phase string

const (
	// Expand is additive and safe before the application deploy.
	Expand Phase = "expand"
	// Alter changes objects in place.
	Alter Phase = "alter"
	// Contract removes objects.
	Contract Phase = "contract"
	// Data holds data-only migrations.
	Data Phase = "data"
)

// Phases is the emission order.
var Phases = []Phase{Expand, Alter, Contract, Data}

// ParsePhase maps a phase name, case-insensitively.
func ParsePhase(s string) (Phase, bool) {
	for _, p := range Phases {
		if strings.EqualFold(string(p), s) {
			return p, true
		}
	}
	return "", false
}

// Type names the operation a changeset performs.
type Type string

const (
	CreateSchema Type = "createSchema"

	CreateTable Type = "createTable"
	DropTable   Type = "dropTable"
	RenameTable Type = "renameTable"

	CreateColumn         Type = "createColumn"
	DropColumn           Type = "dropColumn"
	RenameColumn         Type = "renameColumn"
	ChangeColumnType     Type = "changeColumnType"
	ChangeColumnNullable Type = "changeColumnNullable"
	AddColumnDefault     Type = "addColumnDefault"
	DropColumnDefault    Type = "dropColumnDefault"
	ChangeColumnDefault  Type = "changeColumnDefault"
	AddColumnIdentity    Type = "addColumnIdentity"
	DropColumnIdentity   Type = "dropColumnIdentity"
	ChangeColumnIdentity Type = "changeColumnIdentity"

	CreatePrimaryKey Type = "createPrimaryKey"
	DropPrimaryKey   Type = "dropPrimaryKey"
	RenamePrimaryKey Type = "renamePrimaryKey"

	CreateUnique Type = "createUniqueConstraint"
	DropUnique   Type = "dropUniqueConstraint"
	RenameUnique Type = "renameUniqueConstraint"

	CreateForeignKey Type = "createForeignKey"
	DropForeignKey   Type = "dropForeignKey"
	RenameForeignKey Type = "renameForeignKey"

	CreateCheck Type = "createCheckConstraint"
	DropCheck   Type = "dropCheckConstraint"
	RenameCheck Type = "renameCheckConstraint"

	CreateIndex Type = "createIndex"
	DropIndex   Type = "dropIndex"
	RenameIndex Type = "renameIndex"

	CreateTrigger Type = "createTrigger"
	DropTrigger   Type = "dropTrigger"
	UpdateTrigger Type = "updateTrigger"

	CreateEnum Type = "createEnum"
	DropEnum   Type = "dropEnum"
	ChangeEnum Type = "changeEnum"

	SplitColumn         Type = "splitColumn"
	FinalizeSplitColumn Type = "finalizeSplitColumn"
)

// Changeset is one reversible migration operation. Statements in Up run in
// order; Down undoes Up. Transaction is false when the statements must not
// share one transaction block, either because one of them cannot run inside
// a transaction or because each step must release its lock before the next.
type Changeset struct {
	Priority         int       `json:"priority"`
	Phase            Phase     `json:"phase"`
	SchemaName       string    `json:"schemaName"`
	TableName        string    `json:"tableName,omitempty"`
	CurrentTableName string    `json:"currentTableName,omitempty"`
	Type             Type      `json:"type"`
	Up               []string  `json:"up"`
	Down             []string  `json:"down"`
	Warnings         []Warning `json:"warnings,omitempty"`
	Transaction      bool      `json:"transaction"`
}

// WarningType is the severity class of a Warning.
type WarningType string

const (
	// Blocking operations take locks that stall traffic on busy tables.
	Blocking WarningType = "blocking"
	// MightFail operations depend on existing data and can be rejected.
	MightFail WarningType = "mightFail"
)

// WarningCode identifies the unsafe pattern a warning flags.
type WarningCode string

const (
	AddNonNullableColumn                  WarningCode = "MF001"
	ChangeColumnToNonNullable             WarningCode = "MF002"
	AddPrimaryKeyToExistingNullableColumn WarningCode = "MF003"
	AddUniqueToExistingColumns            WarningCode = "MF004"

	AddSerialColumn             WarningCode = "BK001"
	AddVolatileDefault          WarningCode = "BK002"
	ChangeColumnTypeBlocking    WarningCode = "BK003"
	ChangeColumnDefaultVolatile WarningCode = "BK004"
)

var warningDescriptions = map[WarningCode]string{
	AddNonNullableColumn:                  "adding a non-nullable column without a default fails when the table has rows",
	ChangeColumnToNonNullable:             "setting NOT NULL fails when the column holds NULL values",
	AddPrimaryKeyToExistingNullableColumn: "adding a primary key fails when the key columns hold NULL or duplicate values",
	AddUniqueToExistingColumns:            "adding a unique constraint fails when the columns hold duplicate values",
	AddSerialColumn:                       "adding a serial column rewrites the table under an exclusive lock",
	AddVolatileDefault:                    "adding a column with a volatile default rewrites the table under an exclusive lock",
	ChangeColumnTypeBlocking:              "changing a column type may rewrite the table under an exclusive lock",
	ChangeColumnDefaultVolatile:           "new rows will evaluate a volatile default expression",
}

// Description returns a one-line explanation of the code.
func (c WarningCode) Description() string {
	return warningDescriptions[c]
}

// Warning flags an operation that is unsafe under load. Warnings are
// advisory and never stop generation.
type Warning struct {
	Type   WarningType `json:"type"`
	Code   WarningCode `json:"code"`
	Schema string      `json:"schema"`
	Table  string      `json:"table"`
	Column string      `json:"column,omitempty"`
}

// Priorities. Lower runs first.
const (
	PriorityCreateSchema = 0
	PriorityCreateEnum   = 100
	PriorityChangeEnum   = 110

	PriorityRenameTable      = 200
	PriorityRenameColumn     = 210
	PriorityRenameConstraint = 220

	PriorityCreateTable  = 300
	PriorityCreateColumn = 400

	// Key drops precede column alterations: a primary key column cannot
	// drop NOT NULL while the key exists.
	PriorityDropForeignKey = 490
	PriorityDropPrimaryKey = 495

	PriorityDropIdentity   = 500
	PriorityChangeType     = 510
	PriorityChangeDefault  = 520
	PriorityChangeNullable = 530
	PriorityAddIdentity    = 540

	PriorityCreatePrimaryKey = 610
	PriorityCreateUnique     = 700
	PriorityCreateCheck      = 710
	PriorityCreateIndex      = 720
	PriorityCreateForeignKey = 800
	PriorityCreateTrigger    = 850
	PriorityUpdateTrigger    = 860
	PrioritySplitColumn      = 880

	PriorityDropTrigger   = 1000
	PriorityDropCheck     = 1020
	PriorityDropUnique    = 1030
	PriorityDropIndex     = 1040
	PriorityFinalizeSplit = 1050
	PriorityDropColumn    = 1060
	PriorityDropTable     = 1100
	PriorityDropEnum      = 1200
)

// RequiresNoTransaction reports whether any statement must run outside a
// transaction block.
func RequiresNoTransaction(statements []string) bool {
	for _, s := range statements {
		upper := strings.ToUpper(s)
		if strings.Contains(upper, " CONCURRENTLY") || strings.Contains(upper, " ADD VALUE ") {
			return true
		}
	}
	return false
}
