package provider

import (
	"fmt"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

// ExchangerRegistry resolves the OAuthExchanger for an account's provider.
type ExchangerRegistry struct {
	exchangers map[domain.OAuthProviderKind]out.OAuthExchanger
}

// NewExchangerRegistry indexes exchangers by their own Provider().
func NewExchangerRegistry(exchangers ...out.OAuthExchanger) *ExchangerRegistry {
	r := &ExchangerRegistry{exchangers: make(map[domain.OAuthProviderKind]out.OAuthExchanger, len(exchangers))}
	for _, e := range exchangers {
		r.exchangers[e.Provider()] = e
	}
	return r
}

func (r *ExchangerRegistry) For(provider domain.OAuthProviderKind) (out.OAuthExchanger, error) {
	e, ok := r.exchangers[provider]
	if !ok {
		return nil, fmt.Errorf("provider: no oauth exchanger registered for %q", provider)
	}
	return e, nil
}
