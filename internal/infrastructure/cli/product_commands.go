package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mrops-br/products-service/internal/app/dto"
	"github.com/shopspring/decimal"
)

var errProductNotFound = errors.New("product not found")

// save handles: save -barcode B -name N [-description D] [-price P] [-id ID]
func (a *App) save(ctx context.Context, args []string) int {
	var (
		in    dto.ProductDTO
		price string
	)

	fs := a.newFlagSet("save")
	fs.Int64Var(&in.ID, "id", 0, "id of the product to replace; omit to create")
	fs.StringVar(&in.BarcodeID, "barcode", "", "barcode id")
	fs.StringVar(&in.Name, "name", "", "product name")
	fs.StringVar(&in.Description, "description", "", "product description")
	fs.StringVar(&price, "price", "0", "unit price as a decimal string")
	if err := fs.Parse(args); err != nil {
		return ParseExitCode(err)
	}
	if fs.NArg() > 0 {
		return a.usageError("save", fmt.Errorf("unexpected arguments: %v", fs.Args()))
	}
	if in.ID < 0 {
		return a.usageError("save", fmt.Errorf("invalid id %d", in.ID))
	}

	p, err := decimal.NewFromString(price)
	if err != nil {
		return a.usageError("save", fmt.Errorf("invalid price %q: %w", price, err))
	}
	in.Price = p

	saved, err := a.service.Save(ctx, in)
	if err != nil {
		return a.failure(err)
	}
	return a.print(saved)
}

// list handles: list
func (a *App) list(ctx context.Context, args []string) int {
	if len(args) > 0 {
		return a.usageError("list", fmt.Errorf("unexpected arguments: %v", args))
	}

	products, err := a.service.FindAll(ctx)
	if err != nil {
		return a.failure(err)
	}
	return a.print(products)
}

// get handles: get ID
func (a *App) get(ctx context.Context, args []string) int {
	id, code, ok := a.idArg("get", args)
	if !ok {
		return code
	}

	product, found, err := a.service.FindOne(ctx, id)
	if err != nil {
		return a.failure(err)
	}
	if !found {
		return a.notFound(fmt.Errorf("%w: id %d", errProductNotFound, id))
	}
	return a.print(product)
}

// barcode handles: barcode BARCODE
func (a *App) barcode(ctx context.Context, args []string) int {
	if len(args) != 1 {
		return a.usageError("barcode", errors.New("expected exactly one barcode"))
	}

	product, found, err := a.service.FindOneByBarcodeID(ctx, args[0])
	if err != nil {
		return a.failure(err)
	}
	if !found {
		return a.notFound(fmt.Errorf("%w: barcode %q", errProductNotFound, args[0]))
	}
	return a.print(product)
}

// remove handles: delete ID
func (a *App) remove(ctx context.Context, args []string) int {
	id, code, ok := a.idArg("delete", args)
	if !ok {
		return code
	}

	if err := a.service.Delete(ctx, id); err != nil {
		return a.failure(err)
	}
	return ExitOK
}

func (a *App) idArg(name string, args []string) (int64, int, bool) {
	if len(args) != 1 {
		return 0, a.usageError(name, errors.New("expected exactly one id")), false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, a.usageError(name, fmt.Errorf("invalid id %q", args[0])), false
	}
	return id, ExitOK, true
}

func (a *App) print(data any) int {
	if err := writeJSON(a.stdout, data); err != nil {
		a.logger.Error("Failed to write output", slog.String("error", err.Error()))
		return ExitFailure
	}
	return ExitOK
}

func (a *App) usageError(name string, err error) int {
	writeError(a.stderr, errorBadRequest, err)
	fmt.Fprintf(a.stderr, "Usage: products-service %s\n", a.commands[name].usage)
	return ExitUsage
}

func (a *App) notFound(err error) int {
	writeError(a.stderr, errorNotFound, err)
	return ExitNotFound
}

func (a *App) failure(err error) int {
	writeError(a.stderr, errorInternal, err)
	return ExitFailure
}
