// Package yamlspec loads a workflow's unit graph from a YAML document,
// grounded on the teacher's sync.TemplateParser (yaml.v3 into a plain Go
// struct, then a validating conversion pass into the engine's own types).
// Job executables and Decision functions can't be serialized, so the
// document references them by name and the caller supplies the
// implementations as registries.
package yamlspec

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/workflowforge/engine/internal/plugin"
	"github.com/workflowforge/engine/internal/wferrors"
	"github.com/workflowforge/engine/internal/workflow"
)

// unitDoc is the raw YAML shape for one unit entry.
type unitDoc struct {
	Kind       string         `yaml:"kind"`
	Name       string         `yaml:"name"`
	Plugin     string         `yaml:"plugin,omitempty"`
	Caller     string         `yaml:"caller,omitempty"`
	Decision   string         `yaml:"decision,omitempty"`
	Goto       string         `yaml:"goto,omitempty"`
	ThreadNum  int            `yaml:"thread_num,omitempty"`
	StartPoint string         `yaml:"start_point,omitempty"`
	EndPoint   string         `yaml:"end_point,omitempty"`
	Sync       bool           `yaml:"sync,omitempty"`
	Status     string         `yaml:"status,omitempty"`
	ArgsSeq    []any          `yaml:"args_seq,omitempty"`
	ArgsMap    map[string]any `yaml:"args_map,omitempty"`
	ArgsRef    string         `yaml:"args_ref,omitempty"`
}

// doc is the top-level YAML document: a named list of units.
type doc struct {
	Units []unitDoc `yaml:"units"`
}

// Callers maps a Job's "caller" name to its executable, and Decisions maps
// a Decision's "decision" name to its branch function. Both registries
// are supplied by the program embedding the engine, since YAML cannot
// carry Go closures.
type Callers map[string]plugin.ExecuteFunc
type Decisions map[string]workflow.DecideFunc

// Load parses data into a []workflow.Unit, resolving each job/decision
// reference against callers/decisions.
func Load(data []byte, callers Callers, decisions Decisions) ([]workflow.Unit, error) {
	var d doc
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("yamlspec: failed to parse workflow document: %w", err)
	}

	units := make([]workflow.Unit, 0, len(d.Units))
	for _, u := range d.Units {
		if u.Name == "" {
			return nil, wferrors.InvalidArgument("yamlspec: a unit is missing its name")
		}
		unit, err := convert(u, callers, decisions)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, nil
}

func convert(u unitDoc, callers Callers, decisions Decisions) (workflow.Unit, error) {
	switch u.Kind {
	case "job":
		job := &workflow.Job{Name: u.Name, GotoName: u.Goto, Args: argValue(u)}
		switch {
		case u.Plugin != "":
			job.PluginName = u.Plugin
		case u.Caller != "":
			fn, ok := callers[u.Caller]
			if !ok {
				return nil, wferrors.InvalidArgument(fmt.Sprintf("yamlspec: job %q references unknown caller %q", u.Name, u.Caller))
			}
			job.Caller = fn
		default:
			return nil, wferrors.InvalidArgument(fmt.Sprintf("yamlspec: job %q must set plugin or caller", u.Name))
		}
		return job, nil

	case "decision":
		fn, ok := decisions[u.Decision]
		if !ok {
			return nil, wferrors.InvalidArgument(fmt.Sprintf("yamlspec: decision %q references unknown decision function %q", u.Name, u.Decision))
		}
		return &workflow.Decision{Name: u.Name, Decide: fn}, nil

	case "fork":
		return &workflow.Fork{
			Name:       u.Name,
			ThreadNum:  u.ThreadNum,
			StartPoint: u.StartPoint,
			EndPoint:   u.EndPoint,
			GotoName:   u.Goto,
			Sync:       u.Sync,
		}, nil

	case "join":
		return &workflow.Join{Name: u.Name, GotoName: u.Goto}, nil

	case "end":
		end := &workflow.End{Name: u.Name}
		switch u.Status {
		case "", "ok":
			end.Status = workflow.EndOK
		case "bad_request":
			end.Status = workflow.EndBadRequest
		case "error":
			end.Status = workflow.EndError
		default:
			return nil, wferrors.InvalidArgument(fmt.Sprintf("yamlspec: end %q has unknown status %q", u.Name, u.Status))
		}
		return end, nil

	default:
		return nil, wferrors.InvalidArgument(fmt.Sprintf("yamlspec: unit %q has unknown kind %q", u.Name, u.Kind))
	}
}

func argValue(u unitDoc) workflow.ArgValue {
	switch {
	case u.ArgsRef != "":
		return workflow.Ref(u.ArgsRef)
	case u.ArgsMap != nil:
		return workflow.Map(u.ArgsMap)
	case u.ArgsSeq != nil:
		return workflow.Seq(u.ArgsSeq...)
	default:
		return workflow.Null()
	}
}
