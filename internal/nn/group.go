package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/cvae/internal/tensor"
)

// ParameterGroup is a named, ordered collection of layers.
//
// The cVAE keeps one group for the encoder and one for the decoder and hands
// exactly those two to the optimizer and to checkpoints. State dict keys are
// "<group>/<layer>.<key>", e.g. "cVAE_MNIST_vaeE/conv1.weight".
type ParameterGroup[B tensor.Backend] struct {
	name   string
	order  []string
	layers map[string]Layer[B]
}

// NewParameterGroup creates an empty group.
func NewParameterGroup[B tensor.Backend](name string) *ParameterGroup[B] {
	if name == "" || strings.Contains(name, "/") {
		panic(fmt.Sprintf("nn: invalid group name %q", name))
	}
	return &ParameterGroup[B]{
		name:   name,
		layers: make(map[string]Layer[B]),
	}
}

// Register adds layer to g under name and returns it unchanged,
// so construction reads as a single assignment:
//
//	e.conv1 = nn.Register(group, "conv1", nn.NewConv2D(11, 64, 4, 2, 1, rng, backend))
//
// Registering two layers under the same name panics.
func Register[B tensor.Backend, L Layer[B]](g *ParameterGroup[B], name string, layer L) L {
	if name == "" || strings.ContainsAny(name, "/.") {
		panic(fmt.Sprintf("nn: invalid layer name %q", name))
	}
	if _, exists := g.layers[name]; exists {
		panic(fmt.Sprintf("nn: layer %q already registered in group %q", name, g.name))
	}
	g.order = append(g.order, name)
	g.layers[name] = layer
	return layer
}

// Name returns the group name.
func (g *ParameterGroup[B]) Name() string {
	return g.name
}

// Layers returns layer names in registration order.
func (g *ParameterGroup[B]) Layers() []string {
	return append([]string(nil), g.order...)
}

// Parameters returns all trainable parameters in registration order.
func (g *ParameterGroup[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, name := range g.order {
		params = append(params, g.layers[name].Parameters()...)
	}
	return params
}

// NumParameters returns the total number of trainable scalars.
func (g *ParameterGroup[B]) NumParameters() int {
	total := 0
	for _, p := range g.Parameters() {
		total += p.NumElements()
	}
	return total
}

// SetTraining switches every Trainable layer of the group.
func (g *ParameterGroup[B]) SetTraining(training bool) {
	for _, name := range g.order {
		if t, ok := g.layers[name].(Trainable); ok {
			t.SetTraining(training)
		}
	}
}

// StateDict returns all parameters and buffers keyed "<group>/<layer>.<key>".
func (g *ParameterGroup[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for _, name := range g.order {
		for key, raw := range g.layers[name].StateDict() {
			stateDict[g.key(name, key)] = raw
		}
	}
	return stateDict
}

// Buffers returns the state entries that are not trainable parameters,
// such as batch norm running statistics, keyed like StateDict.
func (g *ParameterGroup[B]) Buffers() map[string]*tensor.RawTensor {
	params := make(map[*tensor.RawTensor]bool)
	for _, p := range g.Parameters() {
		params[p.Tensor().Raw()] = true
	}
	buffers := g.StateDict()
	for key, raw := range buffers {
		if params[raw] {
			delete(buffers, key)
		}
	}
	return buffers
}

// LoadStateDict restores the group from a state dict that may also hold
// entries of other groups; those are ignored.
func (g *ParameterGroup[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for _, name := range g.order {
		prefix := g.key(name, "")
		local := make(map[string]*tensor.RawTensor)
		for key, raw := range stateDict {
			if rest, ok := strings.CutPrefix(key, prefix); ok {
				local[rest] = raw
			}
		}
		if err := g.layers[name].LoadStateDict(local); err != nil {
			return fmt.Errorf("%s/%s: %w", g.name, name, err)
		}
	}
	return nil
}

func (g *ParameterGroup[B]) key(layer, key string) string {
	return g.name + "/" + layer + "." + key
}
