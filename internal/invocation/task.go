package invocation

import (
	"time"

	"github.com/ipfs/go-cid"

	"github.com/ipvm-wg/homestar/internal/ipld"
)

// Resources are the fuel/memory/time limits a Task's meta may carry.
type Resources struct {
	Fuel   *uint64        // nil means no limit
	Memory *uint64        // bytes; nil means use sandbox default
	Time   *time.Duration // nil means use sandbox default
}

// Task is one node of a Workflow's task list.
type Task struct {
	Run  Instruction
	Cause *Pointer // optional: the pointer this task's scheduling was caused by
	Meta Resources
	Prf  []cid.Cid // UCAN proofs authorizing execution; enforcement is out of scope
}

// ToValue renders a Task into its canonical IPLD form.
func (t Task) ToValue() ipld.Value {
	meta := map[string]ipld.Value{}
	if t.Meta.Fuel != nil {
		meta["fuel"] = ipld.Int(int64(*t.Meta.Fuel))
	}
	if t.Meta.Memory != nil {
		meta["memory"] = ipld.Int(int64(*t.Meta.Memory))
	}
	if t.Meta.Time != nil {
		meta["time"] = ipld.Int(t.Meta.Time.Milliseconds())
	}

	prf := make([]ipld.Value, len(t.Prf))
	for i, p := range t.Prf {
		prf[i] = ipld.Link(p)
	}

	fields := map[string]ipld.Value{
		"run":  t.Run.ToValue(),
		"meta": ipld.MapFromGo(meta),
		"prf":  ipld.List(prf...),
	}
	if t.Cause != nil {
		fields["cause"] = t.Cause.ToValue()
	} else {
		fields["cause"] = ipld.Null()
	}

	return ipld.MapFromGo(fields)
}

// InstructionCID is a convenience wrapper over Task.Run.CID().
func (t Task) InstructionCID() (cid.Cid, error) {
	return t.Run.CID()
}
