package dataset

import (
	"fmt"
	"sort"

	"github.com/okian/fedbench/internal/domain/evaluation"
	"github.com/okian/fedbench/internal/domain/model"
)

// Names of the known federated datasets.
const (
	HeartDisease = "Fed-Heart-Disease"
	Camelyon16   = "Fed-Camelyon16"
	ISIC2019     = "Fed-ISIC2019"
	TCGABRCA     = "Fed-TCGA-BRCA"
	Simulated    = "simulated"
)

func logistic(features int) ModelFactory {
	return func(seed uint64) model.Model { return model.NewLogistic(features, seed) }
}

func known(name string, clients, features, batch int, stratify bool, metric evaluation.Metric) Spec {
	return Spec{
		Name:          name,
		Clients:       clients,
		Features:      features,
		TestSize:      0.25,
		BatchSizeTest: batch,
		Stratify:      stratify,
		NewModel:      logistic(features),
		Loss:          model.BCELoss,
		Metric:        metric,
	}
}

// Registry lists the known datasets. Only Simulated ships a provider;
// the others resolve to empty Data until a provider is attached.
func Registry() map[string]Spec {
	sim := known(Simulated, DefaultSyntheticClients, DefaultSyntheticFeatures, 1, false, model.Accuracy)
	sim.Provider = NewSynthetic()
	return map[string]Spec{
		HeartDisease: known(HeartDisease, 4, 13, 100, true, model.Accuracy),
		Camelyon16:   known(Camelyon16, 2, 2048, 1, true, model.AUC),
		ISIC2019:     known(ISIC2019, 6, 200, 100, true, model.Accuracy),
		TCGABRCA:     known(TCGABRCA, 6, 39, 100, false, model.AUC),
		Simulated:    sim,
	}
}

// Names returns the registry keys sorted.
func Names() []string {
	r := Registry()
	out := make([]string, 0, len(r))
	for n := range r {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the Spec registered under name.
func Lookup(name string) (Spec, error) {
	s, ok := Registry()[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return s, nil
}
