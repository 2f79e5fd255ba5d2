package store

import (
	"github.com/hyperwake/hyperwake/internal/model"
	storemodel "github.com/hyperwake/hyperwake/internal/store/model"
	"github.com/jinzhu/copier"
)

// Field names line up between internal/model and internal/store/model, so
// copier.Copy handles both directions without per-field glue — the same
// pattern internal/jvp used to move between its entity and store layers.

func VMToStore(v *model.VM) *storemodel.VM {
	var out storemodel.VM
	_ = copier.Copy(&out, v)
	out.State = string(v.State)
	return &out
}

func VMFromStore(v *storemodel.VM) *model.VM {
	var out model.VM
	_ = copier.Copy(&out, v)
	out.State = model.VMState(v.State)
	if v.LastResumedAt != nil {
		out.LastResumedAt = *v.LastResumedAt
	}
	return &out
}

func PoolToStore(p *model.Pool) *storemodel.Pool {
	var out storemodel.Pool
	_ = copier.Copy(&out, p)
	return &out
}

func PoolFromStore(p *storemodel.Pool) *model.Pool {
	var out model.Pool
	_ = copier.Copy(&out, p)
	return &out
}

func TemplateToStore(t *model.Template) *storemodel.Template {
	var out storemodel.Template
	_ = copier.Copy(&out, t)
	return &out
}

func TemplateFromStore(t *storemodel.Template) *model.Template {
	var out model.Template
	_ = copier.Copy(&out, t)
	return &out
}

func LeaseToStore(l *model.Lease) *storemodel.Lease {
	var out storemodel.Lease
	_ = copier.Copy(&out, l)
	return &out
}

func LeaseFromStore(l *storemodel.Lease) *model.Lease {
	var out model.Lease
	_ = copier.Copy(&out, l)
	return &out
}
