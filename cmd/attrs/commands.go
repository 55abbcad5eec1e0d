package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pbaille/attrs/internal/api"
	"github.com/pbaille/attrs/internal/attribute"
	"github.com/pbaille/attrs/internal/domain"
	"github.com/pbaille/attrs/internal/errors"
	"github.com/pbaille/attrs/internal/extractor"
	"github.com/pbaille/attrs/internal/fetcher"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the canonical attribute catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.seeded
			attrs, err := a.svc.ListAttributes(cmd.Context(), "")
			if err != nil {
				return err
			}
			fmt.Printf("Catalog seeded: %d attributes in registry (%d created, %d updated, %d options added)\n",
				len(attrs), res.Created, res.Updated, res.OptionsAdded)
			return nil
		},
	}
}

func attributesCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "attributes",
		Short: "List attribute definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := domain.Status(strings.ToUpper(status))
			if st != "" && st != domain.StatusActive && st != domain.StatusPendingReview {
				return errors.Newf("unknown status %q", status)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			attrs, err := a.svc.ListAttributes(cmd.Context(), st)
			if err != nil {
				return err
			}
			if len(attrs) == 0 {
				fmt.Println("No attributes.")
				return nil
			}
			return renderAttributes(os.Stdout, attrs)
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by status (ACTIVE or PENDING_REVIEW)")
	return cmd
}

func attributeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attribute [key]",
		Short: "Show one attribute definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			attr, err := a.svc.ResolveAttributeByKey(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Key:       %s\n", attr.Key)
			fmt.Printf("Title:     %s\n", attr.Title)
			fmt.Printf("Scope:     %s\n", attr.Scope)
			fmt.Printf("Type:      %s\n", attr.ValueType)
			fmt.Printf("Status:    %s\n", attr.Status)
			fmt.Printf("Canonical: %t\n", attr.IsCanonical)
			fmt.Printf("Primary:   %t\n", attr.IsPrimary)
			fmt.Printf("Created:   %s\n", attr.CreatedAt.Format(time.DateTime))
			if len(attr.Options) > 0 {
				fmt.Printf("\nOptions:\n")
				for _, o := range attr.Options {
					fmt.Printf("  %-16s %s\n", o.Code, o.Label)
				}
			}
			return nil
		},
	}
}

func observeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "observe [subject-id] [file|-]",
		Short: "Apply raw observation items from a JSON file or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := parseSubject(args[0])
			if err != nil {
				return err
			}
			src := "-"
			if len(args) == 2 {
				src = args[1]
			}
			data, err := readInput(src)
			if err != nil {
				return err
			}
			items, err := decodeItems(data)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.ApplyObservations(cmd.Context(), subject, slices.Values(items))
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		},
	}
}

func setCmd() *cobra.Command {
	var (
		optionCode string
		confidence float64
		evidence   string
	)

	cmd := &cobra.Command{
		Use:   "set [subject-id] [key] [value]",
		Short: "Set the value of a known attribute",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := parseSubject(args[0])
			if err != nil {
				return err
			}
			value := ""
			if len(args) == 3 {
				value = args[2]
			}
			if strings.TrimSpace(value) == "" && optionCode == "" {
				return errors.New("a value or --option is required")
			}
			var ev *string
			if evidence != "" {
				ev = &evidence
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.UpsertKnownAttribute(cmd.Context(), subject, args[1], value, optionCode, confidence, ev); err != nil {
				return err
			}
			fmt.Printf("Set %s for subject %d\n", args[1], subject)
			return nil
		},
	}

	cmd.Flags().StringVarP(&optionCode, "option", "o", "", "option code for ENUM attributes")
	cmd.Flags().Float64VarP(&confidence, "confidence", "c", 1.0, "confidence between 0 and 1")
	cmd.Flags().StringVarP(&evidence, "evidence", "e", "", "source quote")
	return cmd
}

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [subject-id] [text or url]",
		Short: "Extract attributes from free text or a profile page",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := parseSubject(args[0])
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ex := a.newExtractor()
			if ex == nil {
				return errors.WithHint(errors.New("extraction is not configured"), "set OPENAI_API_KEY")
			}

			if fetcher.IsURL(text) {
				fmt.Print("Fetching URL... ")
				content, err := fetcher.New(30*time.Second).Fetch(cmd.Context(), text)
				if err != nil {
					fmt.Printf("failed\n")
					return err
				}
				fmt.Printf("done (%d chars)\n", len([]rune(content)))
				text = content
			}

			fmt.Print("Extracting... ")
			res, err := a.svc.ExtractAndApply(cmd.Context(), subject, text, ex)
			if err != nil {
				fmt.Printf("failed\n")
				return err
			}
			fmt.Printf("done\n")
			if res.Warning != "" {
				fmt.Printf("(warning: %s)\n", res.Warning)
				return nil
			}
			fmt.Printf("Extracted %d items\n", res.Extracted)
			printResult(res.Result)
			return nil
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [subject-id]",
		Short: "Show the stored attributes of a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := parseSubject(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			values, err := a.svc.SubjectValues(cmd.Context(), subject)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				fmt.Printf("No attributes stored for subject %d.\n", subject)
				return nil
			}
			return renderValues(os.Stdout, values)
		},
	}
}

func promoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote [key]",
		Short: "Mark a discovered attribute as reviewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			attr, err := a.svc.PromoteAttribute(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s is now %s\n", attr.Key, attr.Status)
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Apply observations for many subjects from a JSON file",
		Long: `Apply observations for many subjects. The file maps subject ids to item arrays:

  {"12": [{"key": "age", "value": "27"}], "13": [...]}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			var batches map[string][]json.RawMessage
			if err := json.Unmarshal(data, &batches); err != nil {
				return errors.Wrap(err, "decode import file")
			}
			subjects := make([]int64, 0, len(batches))
			bySubject := make(map[int64][]json.RawMessage, len(batches))
			for k, items := range batches {
				id, err := parseSubject(k)
				if err != nil {
					return err
				}
				subjects = append(subjects, id)
				bySubject[id] = items
			}
			slices.Sort(subjects)

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var (
				mu      sync.Mutex
				results = make(map[int64]attribute.Result, len(subjects))
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(workers, 1))
			for _, id := range subjects {
				g.Go(func() error {
					res, err := a.svc.ApplyObservations(ctx, id, slices.Values(bySubject[id]))
					if err != nil {
						return errors.Wrapf(err, "subject %d", id)
					}
					mu.Lock()
					results[id] = res
					mu.Unlock()
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			return renderImport(os.Stdout, subjects, results)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "subjects applied in parallel")
	return cmd
}

func exportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump every stored value as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			attrs, err := a.svc.ListAttributes(cmd.Context(), "")
			if err != nil {
				return err
			}
			values, err := a.svc.Export(cmd.Context())
			if err != nil {
				return err
			}

			w := io.Writer(os.Stdout)
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return errors.Wrap(err, "create export file")
				}
				defer f.Close()
				w = f
			}

			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			err = enc.Encode(map[string]any{
				"exported_at": time.Now().UTC(),
				"attributes":  attrs,
				"subjects":    values,
			})
			if err != nil {
				return errors.Wrap(err, "write export")
			}
			if out != "" {
				fmt.Printf("Exported %d subjects to %s\n", len(values), out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			return api.New(a.svc, a.newExtractor(), addr, a.log).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (overrides config)")
	return cmd
}

func parseSubject(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Newf("subject id must be an integer, got %q", s)
	}
	return id, nil
}

func readInput(src string) ([]byte, error) {
	if src == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, errors.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(src)
	return data, errors.Wrapf(err, "read %s", src)
}

// decodeItems accepts a bare JSON array of items or an extractor-style
// {"attributes": [...]} object.
func decodeItems(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, errors.Wrap(err, "decode items")
		}
		return items, nil
	}
	return extractor.ParseResponse(string(data))
}
