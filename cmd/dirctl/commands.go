package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/client"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/directory"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/dto"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
)

func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dirctl %s\n\nFlags:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func runList(ctx context.Context, args []string, out io.Writer) error {
	var q client.ListQuery
	fs := newFlagSet("list", "list [flags]")
	cf := bindCommon(fs)
	fs.StringVar(&q.Q, "q", "", "Search text matched against name, address and category")
	fs.StringVar(&q.Category, "category", "", "Exact category")
	fs.StringVar(&q.Sort, "sort", "", "Sort key: name, rating or reviews")
	fs.IntVar(&q.Limit, "limit", 20, "Maximum records")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !directory.ValidSort(q.Sort) {
		return fmt.Errorf("unsupported sort %q", q.Sort)
	}

	e, err := setup(cf)
	if err != nil {
		return err
	}
	defer e.Close()

	view := e.client.Businesses(ctx, q)
	printBanner(out, view.Source, view.Origin, view.Error, view.Message)
	printBusinesses(out, view.Items)
	return nil
}

func runShow(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("show", "show [flags] ID")
	cf := bindCommon(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	id := strings.TrimSpace(fs.Arg(0))
	if id == "" {
		return errors.New("business id is required")
	}

	e, err := setup(cf)
	if err != nil {
		return err
	}
	defer e.Close()

	view := e.client.Business(ctx, id)
	printBanner(out, view.Source, view.Origin, view.Error, view.Message)
	if len(view.Items) == 0 {
		return fmt.Errorf("business %s not found", id)
	}
	printBusiness(out, view.Items[0])
	return nil
}

func runCompanies(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("companies", "companies [flags] QUERY")
	cf := bindCommon(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := setup(cf)
	if err != nil {
		return err
	}
	defer e.Close()

	view := e.client.Companies(ctx, strings.Join(fs.Args(), " "))
	printBanner(out, view.Source, view.Origin, view.Error, view.Message)
	printCompanies(out, view.Items)
	return nil
}

func printBanner(out io.Writer, source, origin, errMsg, message string) {
	if origin != "" {
		fmt.Fprintf(out, "source: %s (%s)\n", source, origin)
	} else {
		fmt.Fprintf(out, "source: %s\n", source)
	}
	if errMsg != "" {
		fmt.Fprintf(out, "warning: %s\n", errMsg)
	}
	if message != "" {
		fmt.Fprintln(out, message)
	}
}

func printBusinesses(out io.Writer, items []entity.Business) {
	if len(items) == 0 {
		fmt.Fprintln(out, "no businesses")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tRATING\tREVIEWS")
	for _, b := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%d\n", b.ID, b.Name, b.Category, b.Rating, b.ReviewCount)
	}
	w.Flush()
}

func printBusiness(out io.Writer, b entity.Business) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "%s:\t%s\n", label, value)
		}
	}
	row("ID", b.ID)
	row("Name", b.Name)
	row("Category", b.Category)
	row("Address", b.Address)
	row("Phone", b.Phone)
	row("Website", b.Website)
	row("Email", b.Email)
	row("Status", b.BusinessStatus)
	row("Rating", fmt.Sprintf("%.1f (%d reviews)", b.Rating, b.ReviewCount))
	row("Logo", derefString(b.LogoURL))
	row("Photos", fmt.Sprintf("%d", len(b.Photos)))
	w.Flush()
}

func printCompanies(out io.Writer, items []dto.CompanySearchResult) {
	if len(items) == 0 {
		fmt.Fprintln(out, "no companies")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tADDRESS")
	for _, c := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Name, c.Address)
	}
	w.Flush()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
