package config

import (
	"context"
	"strings"

	"github.com/mmdatafocus/cash_reconciliation/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoreGuardPlugin scopes queries/deletes to the request's store_id when the caller
// is bound to a single store and the model has a store_id column.
//
// NOTE:
// - This does NOT apply to Raw SQL queries. Those must include store_id manually.
// - Admin/system bypass is explicit via appctx.ContextKeySkipStoreScope.
type StoreGuardPlugin struct{}

func NewStoreGuardPlugin() *StoreGuardPlugin { return &StoreGuardPlugin{} }

func (p *StoreGuardPlugin) Name() string { return "store_guard" }

func (p *StoreGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("store_guard:query", storeGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("store_guard:row", storeGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("store_guard:update", storeGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("store_guard:delete", storeGuardCallback); err != nil {
		return err
	}
	return nil
}

func storeGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if v, ok := appctx.GetBool(ctx, appctx.ContextKeySkipStoreScope); ok && v {
		return
	}
	storeID := storeIdFromContext(ctx)
	if storeID == "" {
		return
	}
	if db.Statement.Schema == nil {
		return
	}
	hasStoreID := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, "store_id") {
			hasStoreID = true
			break
		}
	}
	if !hasStoreID {
		return
	}

	// Don't duplicate an explicit store filter.
	if whereHasStoreID(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: "store_id"},
				Value:  storeID,
			},
		},
	})
}

func storeIdFromContext(ctx context.Context) string {
	if v, ok := appctx.GetString(ctx, appctx.ContextKeyStoreId); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func whereHasStoreID(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasStoreID(e) {
			return true
		}
	}
	return false
}

func exprHasStoreID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsStoreID(v.Column)
	case clause.IN:
		return colIsStoreID(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasStoreID(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), "store_id")
	default:
		return false
	}
}

func colIsStoreID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "store_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "store_id")
	default:
		return false
	}
}
