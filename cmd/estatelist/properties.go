package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"estatelist/internal/api"
	"estatelist/internal/domain"
	applog "estatelist/internal/log"
	"estatelist/internal/validate"
)

// propertyFlags are the four editable fields as typed on the command line.
type propertyFlags struct {
	address, price, size, description string
}

func (f *propertyFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.address, "address", "", "street address")
	cmd.Flags().StringVar(&f.price, "price", "", "price")
	cmd.Flags().StringVar(&f.size, "size", "", "size")
	cmd.Flags().StringVar(&f.description, "description", "", "description")
}

func (f propertyFlags) input() (domain.PropertyInput, error) {
	return validate.Property(f.address, f.price, f.size, f.description)
}

func newPropertiesCmd(cl *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "properties",
		Aliases: []string{"props"},
		Short:   "List, search, filter and edit properties",
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	// client and ctx are resolved per run so --api-url and config are applied.
	client := func() *api.Client { return api.NewClient(cl.cfg.APIURL, cl.cfg.APITimeout) }
	ctxOf := func(cmd *cobra.Command) context.Context {
		return applog.WithRequestID(cmd.Context(), uuid.NewString())
	}
	show := func(props []domain.Property) error {
		if asJSON {
			return writeJSON(cl.out, props)
		}
		return writeTable(cl.out, props)
	}

	var page int
	list := &cobra.Command{
		Use:   "list",
		Short: "List one page of properties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 1 {
				return fmt.Errorf("page must be at least 1")
			}
			props, err := client().List(ctxOf(cmd), page)
			if err != nil {
				return err
			}
			return show(props)
		},
	}
	list.Flags().IntVar(&page, "page", 1, "page number")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := validate.ID(args[0])
			if !ok {
				return validate.ErrInvalidID
			}
			p, err := client().Get(ctxOf(cmd), id)
			if err != nil {
				return err
			}
			return show([]domain.Property{p})
		},
	}

	var filter struct{ location, price, size string }
	filterCmd := &cobra.Command{
		Use:   "filter",
		Short: "List properties matching the given fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := validate.Filter(filter.location, filter.price, filter.size)
			props, err := client().Filter(ctxOf(cmd), f)
			if err != nil {
				return err
			}
			if len(props) == 0 && !asJSON {
				fmt.Fprintln(cl.out, "No properties found.")
				return nil
			}
			return show(props)
		},
	}
	filterCmd.Flags().StringVar(&filter.location, "location", "", "address contains")
	filterCmd.Flags().StringVar(&filter.price, "price", "", "exact price")
	filterCmd.Flags().StringVar(&filter.size, "size", "", "exact size")

	var createFlags propertyFlags
	create := &cobra.Command{
		Use:   "create",
		Short: "Add a property",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := createFlags.input()
			if err != nil {
				return err
			}
			p, err := client().Create(ctxOf(cmd), in)
			if err != nil {
				return err
			}
			return show([]domain.Property{p})
		},
	}
	createFlags.bind(create)

	var updateFlags propertyFlags
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace the fields of a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := validate.ID(args[0])
			if !ok {
				return validate.ErrInvalidID
			}
			in, err := updateFlags.input()
			if err != nil {
				return err
			}
			if err := client().Update(ctxOf(cmd), id, in); err != nil {
				return err
			}
			fmt.Fprintf(cl.out, "Property %d updated\n", id)
			return nil
		},
	}
	updateFlags.bind(update)

	var yes bool
	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := validate.ID(args[0])
			if !ok {
				return validate.ErrInvalidID
			}
			if !yes && !confirm(cl.in, cl.out, fmt.Sprintf("Delete property %d? [y/N]: ", id)) {
				fmt.Fprintln(cl.out, "Cancelled")
				return nil
			}
			if err := client().Delete(ctxOf(cmd), id); err != nil {
				return err
			}
			fmt.Fprintf(cl.out, "Property %d deleted\n", id)
			return nil
		},
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(list, get, filterCmd, create, update, del)
	return cmd
}

// confirm asks prompt on out and reports whether the answer on in was yes.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func writeTable(w io.Writer, props []domain.Property) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tADDRESS\tPRICE\tSIZE\tDESCRIPTION")
	for _, p := range props {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Address,
			strconv.FormatFloat(p.Price, 'f', -1, 64),
			strconv.FormatFloat(p.Size, 'f', -1, 64),
			p.Description)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, props []domain.Property) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(props)
}
