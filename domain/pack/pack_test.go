package pack_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/adcompliance/domain/pack"
	"github.com/felixgeelhaar/adcompliance/domain/tool"
)

type fakeRegistry struct {
	names []string
	fail  error
}

func (r *fakeRegistry) Register(t tool.Tool) error {
	if r.fail != nil {
		return r.fail
	}
	r.names = append(r.names, t.Name())
	return nil
}
func (r *fakeRegistry) Get(string) (tool.Tool, bool) { return nil, false }
func (r *fakeRegistry) List() []tool.Tool            { return nil }
func (r *fakeRegistry) Names() []string              { return r.names }
func (r *fakeRegistry) Has(string) bool              { return false }
func (r *fakeRegistry) Unregister(string) error      { return nil }

func newTool(name string) tool.Tool {
	return tool.NewBuilder(name).
		WithHandler(func(context.Context, json.RawMessage) (tool.Result, error) { return tool.Result{}, nil }).
		MustBuild()
}

func TestBuilder(t *testing.T) {
	t.Parallel()

	p := pack.NewBuilder("compliance").
		WithDescription("desc").
		WithVersion("1.0.0").
		WithInstruction("instr").
		WithMetadata("lang", "fr").
		AddTools(newTool("a"), newTool("b")).
		Build()

	if got := p.ToolNames(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("ToolNames() = %v, want [a b]", got)
	}
	if _, ok := p.GetTool("b"); !ok {
		t.Error("GetTool(b) not found")
	}
	if _, ok := p.GetTool("c"); ok {
		t.Error("GetTool(c) found")
	}
	if p.Instruction != "instr" || p.Metadata["lang"] != "fr" || p.Version != "1.0.0" {
		t.Errorf("pack = %+v", p)
	}
}

func TestPack_Install(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{}
	p := pack.NewBuilder("p").AddTools(newTool("a"), newTool("b")).Build()
	if err := p.Install(reg); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if len(reg.names) != 2 || reg.names[0] != "a" {
		t.Errorf("registered = %v", reg.names)
	}

	if err := pack.NewBuilder("empty").Build().Install(reg); !errors.Is(err, pack.ErrInvalidPack) {
		t.Errorf("Install(empty) error = %v, want ErrInvalidPack", err)
	}

	boom := errors.New("exists")
	if err := p.Install(&fakeRegistry{fail: boom}); !errors.Is(err, boom) {
		t.Errorf("Install() error = %v, want %v", err, boom)
	}
}
