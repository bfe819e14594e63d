package config

// ConfigCallback allows packages to react to the global configuration once
// it has been built, e.g. the logger re-initializing with file output.
type ConfigCallback[T any] struct {
	callbacks []func(T)
}

func (cc *ConfigCallback[T]) AddCallback(f func(T)) {
	cc.callbacks = append(cc.callbacks, f)
}

func (cc *ConfigCallback[T]) Call(config T) {
	for _, f := range cc.callbacks {
		f(config)
	}
}
