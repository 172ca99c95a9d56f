package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/shopdesk/workorder-cli/internal/model"
	"github.com/shopdesk/workorder-cli/internal/store"
)

var (
	ordersStatus   string
	ordersCustomer string
	ordersLimit    int
	ordersOut      string
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Inspect and export work orders",
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List work orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, filter, err := openOrdersStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		orders, err := st.ListWorkOrders(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list work orders")
		}

		cmd.Println(renderOrdersTable(orders))
		return nil
	},
}

var ordersShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one work order with its customer and vehicle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, _, err := openOrdersStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		wo, err := st.GetWorkOrder(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "get work order %s", args[0])
		}

		detail := workOrderDetail{WorkOrder: *wo}
		if wo.CustomerID != "" {
			if c, err := st.GetCustomer(ctx, wo.CustomerID); err == nil {
				detail.Customer = c
			}
		}
		if wo.VehicleID != "" {
			if v, err := st.GetVehicle(ctx, wo.VehicleID); err == nil {
				detail.Vehicle = v
			}
		}

		out, err := json.MarshalIndent(detail, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal work order")
		}
		cmd.Println(string(out))
		return nil
	},
}

var ordersExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export work orders to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, filter, err := openOrdersStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		orders, err := st.ListWorkOrders(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list work orders")
		}

		if err := writeOrdersXLSX(ordersOut, orders); err != nil {
			return err
		}
		cmd.Printf("exported %d work orders to %s\n", len(orders), ordersOut)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{ordersListCmd, ordersExportCmd} {
		c.Flags().StringVar(&ordersStatus, "status", "", "filter by status")
		c.Flags().StringVar(&ordersCustomer, "customer", "", "filter by customer id")
		c.Flags().IntVar(&ordersLimit, "limit", 0, "max number of orders (0 = all)")
	}
	ordersExportCmd.Flags().StringVar(&ordersOut, "out", "workorders.xlsx", "output file path")

	ordersCmd.AddCommand(ordersListCmd, ordersShowCmd, ordersExportCmd)
	rootCmd.AddCommand(ordersCmd)
}

// openOrdersStore opens the configured store, runs migrations, and builds
// the list filter from the shared flags.
func openOrdersStore(ctx context.Context) (store.Store, store.WorkOrderFilter, error) {
	var filter store.WorkOrderFilter

	if ordersStatus != "" {
		status := model.WorkOrderStatus(ordersStatus)
		if !status.Valid() {
			return nil, filter, eris.Errorf("invalid status %q", ordersStatus)
		}
		filter.Status = status
	}
	filter.CustomerID = ordersCustomer
	filter.Limit = ordersLimit

	st, err := initStore(ctx)
	if err != nil {
		return nil, filter, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, filter, eris.Wrap(err, "migrate store")
	}
	return st, filter, nil
}

func renderOrdersTable(orders []model.WorkOrder) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "STATUS", "VEHICLE", "SUMMARY", "TOTAL", "CREATED"})

	for _, wo := range orders {
		tw.AppendRow(table.Row{
			wo.ID,
			string(wo.Status),
			orderVehicleLabel(wo),
			truncateCell(wo.WorkSummary, 48),
			fmt.Sprintf("%.2f", wo.Total),
			wo.CreatedAt.Format("2006-01-02 15:04"),
		})
	}

	return tw.Render()
}

// orderVehicleLabel prefers decoded year/make/model, falling back to VIN.
func orderVehicleLabel(wo model.WorkOrder) string {
	parts := make([]string, 0, 3)
	for _, key := range []string{model.InfoYear, model.InfoMake, model.InfoModel} {
		if v := wo.VehicleInfo[key]; v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return wo.VehicleInfo[model.InfoVIN]
}

func truncateCell(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func writeOrdersXLSX(path string, orders []model.WorkOrder) error {
	file := xlsx.NewFile()

	sheet, err := file.AddSheet("Work Orders")
	if err != nil {
		return eris.Wrap(err, "add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"ID", "Status", "Customer ID", "Vehicle ID", "VIN", "Mileage",
		"Summary", "Total Parts", "Total Labor", "Total", "Created", "Updated",
	} {
		header.AddCell().Value = h
	}

	for _, wo := range orders {
		row := sheet.AddRow()
		row.AddCell().Value = wo.ID
		row.AddCell().Value = string(wo.Status)
		row.AddCell().Value = wo.CustomerID
		row.AddCell().Value = wo.VehicleID
		row.AddCell().Value = wo.VehicleInfo[model.InfoVIN]
		row.AddCell().Value = wo.VehicleInfo[model.InfoMileage]
		row.AddCell().Value = wo.WorkSummary
		row.AddCell().SetFloat(wo.TotalParts)
		row.AddCell().SetFloat(wo.TotalLabor)
		row.AddCell().SetFloat(wo.Total)
		row.AddCell().Value = wo.CreatedAt.Format("2006-01-02 15:04:05")
		row.AddCell().Value = wo.UpdatedAt.Format("2006-01-02 15:04:05")
	}

	items, err := file.AddSheet("Line Items")
	if err != nil {
		return eris.Wrap(err, "add sheet")
	}
	itemHeader := items.AddRow()
	for _, h := range []string{"Order ID", "Description", "Type", "Quantity", "Unit Price", "Total"} {
		itemHeader.AddCell().Value = h
	}
	for _, wo := range orders {
		for _, li := range wo.LineItems {
			row := items.AddRow()
			row.AddCell().Value = wo.ID
			row.AddCell().Value = li.Description
			row.AddCell().Value = string(li.Type)
			row.AddCell().SetFloat(li.Quantity)
			row.AddCell().SetFloat(li.UnitPrice)
			row.AddCell().SetFloat(li.Total)
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "save %s", path)
	}
	return nil
}
