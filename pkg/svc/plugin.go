package svc

// Plugin contributes handlers and default options to a client type.
type Plugin interface {
	Name() string
	ContributeHandlers(step Step) []HandlerSpec
	DefaultOptions() Options
}

// PluginSpec is a Plugin assembled from plain values. Handlers are filtered
// by their Step when contributed.
type PluginSpec struct {
	PluginName string
	Handlers   []HandlerSpec
	Defaults   Options
}

// Name implements Plugin.
func (p *PluginSpec) Name() string {
	return p.PluginName
}

// ContributeHandlers implements Plugin.
func (p *PluginSpec) ContributeHandlers(step Step) []HandlerSpec {
	var specs []HandlerSpec

	for _, spec := range p.Handlers {
		if spec.Step == step {
			specs = append(specs, spec)
		}
	}

	return specs
}

// DefaultOptions implements Plugin.
func (p *PluginSpec) DefaultOptions() Options {
	return p.Defaults
}

// resolvePlugins registers each plugin's handlers in plugin order and
// merges their defaults, later plugins overriding earlier ones.
func resolvePlugins(plugins []Plugin) (*ResolvedChain, error) {
	list := NewHandlerList()
	defaults := Options{}

	for _, plugin := range plugins {
		for _, step := range Steps {
			for _, spec := range plugin.ContributeHandlers(step) {
				spec.Step = step
				list.Add(spec)
			}
		}

		for k, v := range plugin.DefaultOptions() {
			defaults[k] = v
		}
	}

	chain, err := list.Resolve()
	if err != nil {
		return nil, err
	}

	chain.defaults = defaults

	return chain, nil
}
