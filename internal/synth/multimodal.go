package synth

import "fmt"

// CategorySample is one generated value tagged with the label whose mode produced it.
type CategorySample struct {
	Value    float64 `json:"value"`
	Category string  `json:"category"`
}

// ChannelSpec describes one multi-modal channel: one mode per label, means drawn in Range.
type ChannelSpec struct {
	Name   string
	Labels []string
	Range  ValueRange
}

// Channel is a generated channel together with the parameters that produced it.
type Channel struct {
	Name     string           `json:"name"`
	Clusters []ClusterParam   `json:"clusters"`
	Counts   map[string]int   `json:"counts"`
	Samples  []CategorySample `json:"-"`
}

// Values returns the sample values in generation order.
func (c Channel) Values() []float64 {
	out := make([]float64, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = s.Value
	}
	return out
}

// MultiModal draws counts[labels[i]] values from N(clusters[i].Mean, clusters[i].Spread²)
// for each label in declared order. Values are not clipped to the range the clusters
// were drawn from, so tails may fall outside it.
func MultiModal(src *Source, labels []string, clusters []ClusterParam, counts map[string]int) ([]CategorySample, error) {
	if len(labels) != len(clusters) {
		return nil, fmt.Errorf("MultiModal: %d labels for %d clusters: %w", len(labels), len(clusters), ErrInvalidParam)
	}
	total := 0
	for _, label := range labels {
		total += counts[label]
	}
	samples := make([]CategorySample, 0, total)
	for i, label := range labels {
		c := clusters[i]
		for j := 0; j < counts[label]; j++ {
			samples = append(samples, CategorySample{Value: src.Normal(c.Mean, c.Spread), Category: label})
		}
	}
	return samples, nil
}

// GenerateChannel runs the cluster sampler, the distributor and the multi-modal draw
// for spec on a single stream and returns n samples.
func GenerateChannel(src *Source, spec ChannelSpec, n int, opts ClusterOptions) (Channel, error) {
	clusters, err := SampleClusters(src, spec.Range, len(spec.Labels), opts)
	if err != nil {
		return Channel{}, fmt.Errorf("channel %s: %w", spec.Name, err)
	}
	counts, err := Distribute(src, n, spec.Labels)
	if err != nil {
		return Channel{}, fmt.Errorf("channel %s: %w", spec.Name, err)
	}
	samples, err := MultiModal(src, spec.Labels, clusters, counts)
	if err != nil {
		return Channel{}, fmt.Errorf("channel %s: %w", spec.Name, err)
	}
	return Channel{Name: spec.Name, Clusters: clusters, Counts: counts, Samples: samples}, nil
}
