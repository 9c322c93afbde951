package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/born-ml/cvae/internal/serialization"
	"github.com/born-ml/cvae/internal/train"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show the header and tensors of a .born checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := serialization.ReadFile(args[0])
			if err != nil {
				return err
			}
			printHeader(cmd.OutOrStdout(), file)
			printTensors(cmd.OutOrStdout(), file.Header.Tensors)
			return nil
		},
	}
}

func printHeader(w io.Writer, file *serialization.File) {
	h := file.Header
	fmt.Fprintf(w, "model:    %s\n", h.ModelType)
	fmt.Fprintf(w, "producer: %s\n", h.Producer)
	fmt.Fprintf(w, "created:  %s\n", h.CreatedAt.Format("2006-01-02 15:04:05"))
	if meta := h.CheckpointMeta; meta != nil {
		fmt.Fprintf(w, "run id:   %s\n", meta.RunID)
		fmt.Fprintf(w, "step:     %d\n", meta.Step)
		fmt.Fprintf(w, "loss:     %.4f\n", meta.Loss)
		if hp, err := train.ParseHyperparameters(meta.TrainingMeta); err == nil && hp.BatchSize > 0 {
			fmt.Fprintf(w, "trained:  lr=%g batch=%d epochs=%d latent=%d seed=%d synthetic=%t\n",
				hp.LearningRate, hp.BatchSize, hp.Epochs, hp.LatentDim, hp.Seed, hp.Synthetic)
		}
	}
	keys := make([]string, 0, len(h.Metadata))
	for k := range h.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", k, h.Metadata[k])
	}
	fmt.Fprintln(w)
}

func printTensors(w io.Writer, tensors []serialization.TensorMeta) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"NAME", "DTYPE", "SHAPE", "ELEMENTS", "BYTES"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	var total int
	for _, t := range tensors {
		n := 1
		for _, d := range t.Shape {
			n *= d
		}
		total += n
		table.Append([]string{t.Name, t.DType, fmt.Sprint(t.Shape), fmt.Sprint(n), fmt.Sprint(t.Size)})
	}
	table.SetFooter([]string{"", "", "TOTAL", fmt.Sprint(total), ""})
	table.Render()
}
