package feature

import "github.com/google/uuid"

// Catalog aggregates the feature lists of all registered providers. It is
// built once at startup and read-only afterwards, so lookups need no
// locking.
//
// Feature ids are expected to be globally unique across providers; lookups
// are first-match and do not guard against overlapping ids.
type Catalog struct {
	providers []Provider
}

// NewCatalog builds a catalog over the given providers.
func NewCatalog(providers ...Provider) *Catalog {
	return &Catalog{providers: providers}
}

// Providers returns the registered providers in registration order.
func (c *Catalog) Providers() []Provider {
	return c.providers
}

// Features returns every catalogued feature across all providers.
func (c *Catalog) Features() []Feature {
	var all []Feature
	for _, p := range c.providers {
		all = append(all, p.Features()...)
	}
	return all
}

// FeaturesOf returns the feature list of the given provider, or an empty
// list for unknown provider ids.
func (c *Catalog) FeaturesOf(providerID uuid.UUID) []Feature {
	for _, p := range c.providers {
		if p.UID() == providerID {
			return p.Features()
		}
	}
	return nil
}

// Feature returns the catalogued feature with the given id, or ZeroFeature
// when no provider owns it.
func (c *Catalog) Feature(featureID uuid.UUID) Feature {
	for _, p := range c.providers {
		for _, f := range p.Features() {
			if f.UID == featureID {
				return f
			}
		}
	}
	return ZeroFeature
}

// ProviderOf returns the id of the provider owning featureID, or uuid.Nil.
func (c *Catalog) ProviderOf(featureID uuid.UUID) uuid.UUID {
	if p := c.providerFor(featureID); p != nil {
		return p.UID()
	}
	return uuid.Nil
}

// RelatedFeatures returns the complete feature list of the provider owning
// featureID, including featureID itself.
func (c *Catalog) RelatedFeatures(featureID uuid.UUID) []Feature {
	if p := c.providerFor(featureID); p != nil {
		return p.Features()
	}
	return nil
}

// MetaFeatureOf resolves the grouping feature for featureID via the owning
// provider, or ZeroFeature when no provider owns it.
func (c *Catalog) MetaFeatureOf(featureID uuid.UUID) Feature {
	if p := c.providerFor(featureID); p != nil {
		return p.MetaFeature(featureID)
	}
	return ZeroFeature
}

func (c *Catalog) providerFor(featureID uuid.UUID) Provider {
	for _, p := range c.providers {
		for _, f := range p.Features() {
			if f.UID == featureID {
				return p
			}
		}
	}
	return nil
}
