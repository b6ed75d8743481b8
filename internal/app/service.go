package app

import (
	"imagefin/internal/adapters"
	"imagefin/internal/ports"
)

// Service holds the ports the application layer drives. Introspector and
// Variants are nil by default because they are parameterized per request
// (objcopy tool, variant config path); tests inject fakes through them.
type Service struct {
	Manifests    ports.ManifestReaderPort
	Writer       ports.OutputWriterPort
	Introspector ports.IntrospectorPort
	Variants     ports.VariantResolverPort
}

func NewService() Service {
	return Service{
		Manifests: adapters.NewManifestFileAdapter(),
		Writer:    adapters.NewOutputFileAdapter(),
	}
}

func (s Service) introspector(objcopy string) ports.IntrospectorPort {
	if s.Introspector != nil {
		return s.Introspector
	}
	return adapters.NewElfFileAdapter(objcopy)
}

func (s Service) variants(configPath string) (ports.VariantResolverPort, error) {
	if s.Variants != nil {
		return s.Variants, nil
	}
	adapter, err := adapters.LoadVariantConfig(configPath)
	if err != nil {
		return nil, err
	}
	return adapter, nil
}
