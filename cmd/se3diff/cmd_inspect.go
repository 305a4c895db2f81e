package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/se3diff/internal/poseio"
	"github.com/born-ml/se3diff/internal/so3"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Summarise a saved pose sample",
		Args:  cobra.ExactArgs(1),
		RunE:  InspectHandler,
	}
}

// InspectHandler prints the metadata, tensors and pose statistics of a file.
func InspectHandler(cmd *cobra.Command, args []string) error {
	f, err := poseio.ReadFile(args[0])
	if err != nil {
		return err
	}
	s, err := poseio.SampleFromFile(f)
	if err != nil {
		return err
	}
	return showSample(cmd.OutOrStdout(), f, summarize(s.Rot.Data(), s.Trans.Data()))
}

// poseSummary holds per-axis translation statistics and rotation angles.
type poseSummary struct {
	Poses     int
	TransMean [3]float64
	TransStd  [3]float64
	AngleMean float64
	AngleMax  float64
	NearPi    int
}

func summarize(rot, trans []float64) poseSummary {
	n := len(trans) / 3
	s := poseSummary{Poses: n}

	axis := make([]float64, n)
	for k := range 3 {
		for i := range n {
			axis[i] = trans[3*i+k]
		}
		s.TransMean[k], s.TransStd[k] = stat.MeanStdDev(axis, nil)
	}

	maps := so3.DefaultMaps()
	angles := make([]float64, n)
	for i := range n {
		var m so3.Matrix
		copy(m[:], rot[9*i:9*i+9])
		angles[i] = maps.Angle(m)
		s.AngleMax = max(s.AngleMax, angles[i])
		if maps.NearPi(m) {
			s.NearPi++
		}
	}
	s.AngleMean = stat.Mean(angles, nil)
	return s
}

func showSample(w io.Writer, f *poseio.File, s poseSummary) error {
	g := func(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) }

	tableRender := func(header string, rows [][]string) {
		fmt.Fprintln(w, " ", header)
		table := newTable(w)
		table.AppendBulk(rows)
		table.Render()
		fmt.Fprintln(w)
	}

	keys := make([]string, 0, len(f.Metadata))
	for k := range f.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var meta [][]string
	for _, k := range keys {
		meta = append(meta, []string{"", k, f.Metadata[k]})
	}
	tableRender("Metadata", meta)

	var tensors [][]string
	for _, name := range f.Names() {
		t, err := f.Tensor(name)
		if err != nil {
			return err
		}
		tensors = append(tensors, []string{"", name, fmt.Sprint(t.Shape())})
	}
	tableRender("Tensors", tensors)

	tableRender("Poses", [][]string{
		{"", "count", strconv.Itoa(s.Poses)},
		{"", "translation mean", fmt.Sprintf("%s %s %s", g(s.TransMean[0]), g(s.TransMean[1]), g(s.TransMean[2]))},
		{"", "translation std", fmt.Sprintf("%s %s %s", g(s.TransStd[0]), g(s.TransStd[1]), g(s.TransStd[2]))},
		{"", "rotation angle mean", g(s.AngleMean)},
		{"", "rotation angle max", g(s.AngleMax)},
		{"", "near pi", strconv.Itoa(s.NearPi)},
	})
	return nil
}
