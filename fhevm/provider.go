package fhevm

import (
	"github.com/ruteri/fhe-identity-auth/coprocessor"
	"github.com/ruteri/fhe-identity-auth/interfaces"
)

// Provider exposes a LocalClient once its engine has finished loading.
type Provider struct {
	engine *coprocessor.LazyEngine
	client interfaces.EncryptionClient
}

// NewProvider ties client readiness to engine.
func NewProvider(engine *coprocessor.LazyEngine, client interfaces.EncryptionClient) *Provider {
	return &Provider{engine: engine, client: client}
}

func (p *Provider) Instance() (interfaces.EncryptionClient, bool, error) {
	if p.engine.Ready() {
		return p.client, false, nil
	}
	loading, err := p.engine.Status()
	return nil, loading, err
}

// StaticProvider reports a fixed readiness. A nil Client with Loading false
// and no Err means no encryption service is configured.
type StaticProvider struct {
	Client  interfaces.EncryptionClient
	Loading bool
	Err     error
}

func (p StaticProvider) Instance() (interfaces.EncryptionClient, bool, error) {
	return p.Client, p.Loading, p.Err
}
