package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/shopdesk/workorder-cli/internal/model"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore implements Store against DynamoDB tables. Table creation is
// managed out of band (local DynamoDB setups or infrastructure templates),
// so Migrate is a no-op.
type DynamoStore struct {
	ddb    DynamoAPI
	prefix string
}

// DynamoConfig carries connection settings for DynamoDB.
type DynamoConfig struct {
	Region      string
	TablePrefix string
	Endpoint    string // optional, for local DynamoDB
}

// NewDynamo creates a DynamoStore from the given config.
func NewDynamo(ctx context.Context, cfg DynamoConfig) (*DynamoStore, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "dynamo: load aws config")
	}

	var clientOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &DynamoStore{
		ddb:    dynamodb.NewFromConfig(awsCfg, clientOpts...),
		prefix: cfg.TablePrefix,
	}, nil
}

// NewDynamoWithClient wraps an existing client. Used by tests.
func NewDynamoWithClient(ddb DynamoAPI, prefix string) *DynamoStore {
	return &DynamoStore{ddb: ddb, prefix: prefix}
}

func (s *DynamoStore) table(name string) string {
	return s.prefix + name
}

func (s *DynamoStore) Migrate(ctx context.Context) error {
	return nil
}

func (s *DynamoStore) Close() error {
	return nil
}

// Items keep nested collections as JSON strings so the attribute layout
// stays stable regardless of struct tag changes in the model package.

type workOrderItem struct {
	ID              string  `dynamodbav:"id"`
	CustomerID      string  `dynamodbav:"customer_id"`
	VehicleID       string  `dynamodbav:"vehicle_id"`
	VehicleInfo     string  `dynamodbav:"vehicle_info"`
	WorkSummary     string  `dynamodbav:"work_summary"`
	LineItems       string  `dynamodbav:"line_items"`
	TotalParts      float64 `dynamodbav:"total_parts"`
	TotalLabor      float64 `dynamodbav:"total_labor"`
	Total           float64 `dynamodbav:"total"`
	Status          string  `dynamodbav:"status"`
	ProcessingNotes string  `dynamodbav:"processing_notes"`
	CreatedAt       string  `dynamodbav:"created_at"`
	UpdatedAt       string  `dynamodbav:"updated_at"`
}

type customerItem struct {
	ID        string `dynamodbav:"id"`
	FirstName string `dynamodbav:"first_name"`
	LastName  string `dynamodbav:"last_name"`
	Email     string `dynamodbav:"email"`
	Phone     string `dynamodbav:"phone"`
	Address   string `dynamodbav:"address"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

type vehicleItem struct {
	ID         string `dynamodbav:"id"`
	CustomerID string `dynamodbav:"customer_id"`
	VIN        string `dynamodbav:"vin"`
	Plate      string `dynamodbav:"plate"`
	Year       string `dynamodbav:"year"`
	Make       string `dynamodbav:"make"`
	Model      string `dynamodbav:"model"`
	Engine     string `dynamodbav:"engine"`
	Mileage    int    `dynamodbav:"mileage"`
	CreatedAt  string `dynamodbav:"created_at"`
	UpdatedAt  string `dynamodbav:"updated_at"`
}

// --- work orders ---

func (s *DynamoStore) CreateWorkOrder(ctx context.Context, wo *model.WorkOrder) error {
	if wo.ID == "" {
		wo.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	wo.CreatedAt = now
	wo.UpdatedAt = now
	if wo.Status == "" {
		wo.Status = model.StatusPending
	}
	if wo.VehicleInfo == nil {
		wo.VehicleInfo = map[string]string{}
	}
	return s.putWorkOrder(ctx, wo)
}

func (s *DynamoStore) putWorkOrder(ctx context.Context, wo *model.WorkOrder) error {
	it, err := toWorkOrderItem(wo)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return eris.Wrap(err, "dynamo: marshal work order")
	}
	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table("work_orders")),
		Item:      av,
	})
	return eris.Wrap(err, "dynamo: put work order")
}

func (s *DynamoStore) GetWorkOrder(ctx context.Context, id string) (*model.WorkOrder, error) {
	out, err := s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table("work_orders")),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "dynamo: get work order %s", id)
	}
	if len(out.Item) == 0 {
		return nil, notFound("work order", id)
	}

	var it workOrderItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, eris.Wrap(err, "dynamo: unmarshal work order")
	}
	return fromWorkOrderItem(it)
}

func (s *DynamoStore) UpdateWorkOrder(ctx context.Context, id string, upd model.WorkOrderUpdate) (*model.WorkOrder, error) {
	expr := newUpdateExpr()
	if upd.CustomerID != nil {
		expr.set("customer_id", *upd.CustomerID)
	}
	if upd.VehicleID != nil {
		expr.set("vehicle_id", *upd.VehicleID)
	}
	if upd.VehicleInfo != nil {
		j, err := json.Marshal(upd.VehicleInfo)
		if err != nil {
			return nil, eris.Wrap(err, "dynamo: marshal vehicle info")
		}
		expr.set("vehicle_info", string(j))
	}
	if upd.WorkSummary != nil {
		expr.set("work_summary", *upd.WorkSummary)
	}
	if upd.LineItems != nil {
		j, err := json.Marshal(upd.LineItems)
		if err != nil {
			return nil, eris.Wrap(err, "dynamo: marshal line items")
		}
		expr.set("line_items", string(j))
	}
	if upd.TotalParts != nil {
		expr.set("total_parts", *upd.TotalParts)
	}
	if upd.TotalLabor != nil {
		expr.set("total_labor", *upd.TotalLabor)
	}
	if upd.Total != nil {
		expr.set("total", *upd.Total)
	}
	if upd.Status != nil {
		expr.set("status", string(*upd.Status))
	}
	if upd.ProcessingNotes != nil {
		j, err := json.Marshal(upd.ProcessingNotes)
		if err != nil {
			return nil, eris.Wrap(err, "dynamo: marshal processing notes")
		}
		expr.set("processing_notes", string(j))
	}
	expr.set("updated_at", time.Now().UTC().Format(time.RFC3339Nano))

	item, err := s.updateItem(ctx, "work_orders", "work order", id, expr)
	if err != nil {
		return nil, err
	}
	var it workOrderItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return nil, eris.Wrap(err, "dynamo: unmarshal work order")
	}
	return fromWorkOrderItem(it)
}

func (s *DynamoStore) DeleteWorkOrder(ctx context.Context, id string) error {
	// Conditional delete so missing ids report not found like the SQL backends.
	_, err := s.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table("work_orders")),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return notFound("work order", id)
		}
		return eris.Wrapf(err, "dynamo: delete work order %s", id)
	}
	return nil
}

func (s *DynamoStore) ListWorkOrders(ctx context.Context, filter WorkOrderFilter) ([]model.WorkOrder, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.table("work_orders")),
	}

	var exprs []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}

	if filter.Status != "" {
		exprs = append(exprs, "#status = :status")
		names["#status"] = "status"
		values[":status"] = &types.AttributeValueMemberS{Value: string(filter.Status)}
	}
	if filter.CustomerID != "" {
		exprs = append(exprs, "customer_id = :customer_id")
		values[":customer_id"] = &types.AttributeValueMemberS{Value: filter.CustomerID}
	}
	if len(exprs) > 0 {
		input.FilterExpression = aws.String(joinAnd(exprs))
		input.ExpressionAttributeValues = values
		if len(names) > 0 {
			input.ExpressionAttributeNames = names
		}
	}

	var orders []model.WorkOrder
	for {
		out, err := s.ddb.Scan(ctx, input)
		if err != nil {
			return nil, eris.Wrap(err, "dynamo: scan work orders")
		}
		for _, item := range out.Items {
			var it workOrderItem
			if err := attributevalue.UnmarshalMap(item, &it); err != nil {
				return nil, eris.Wrap(err, "dynamo: unmarshal work order")
			}
			wo, err := fromWorkOrderItem(it)
			if err != nil {
				return nil, err
			}
			orders = append(orders, *wo)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	// Scans return items in key order; sort newest first to match SQL.
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	return paginate(orders, filter.Limit, filter.Offset), nil
}

// --- customers ---

func (s *DynamoStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	return s.putCustomer(ctx, c)
}

func (s *DynamoStore) putCustomer(ctx context.Context, c *model.Customer) error {
	av, err := attributevalue.MarshalMap(toCustomerItem(c))
	if err != nil {
		return eris.Wrap(err, "dynamo: marshal customer")
	}
	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table("customers")),
		Item:      av,
	})
	return eris.Wrap(err, "dynamo: put customer")
}

func (s *DynamoStore) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	out, err := s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table("customers")),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "dynamo: get customer %s", id)
	}
	if len(out.Item) == 0 {
		return nil, notFound("customer", id)
	}

	var it customerItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, eris.Wrap(err, "dynamo: unmarshal customer")
	}
	c := fromCustomerItem(it)
	if c.VehicleIDs, err = s.customerVehicleIDs(ctx, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *DynamoStore) GetCustomerByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	return s.customerByAttr(ctx, "phone", phone)
}

func (s *DynamoStore) GetCustomerByEmail(ctx context.Context, email string) (*model.Customer, error) {
	return s.customerByAttr(ctx, "email", email)
}

func (s *DynamoStore) customerByAttr(ctx context.Context, attr, val string) (*model.Customer, error) {
	if val == "" {
		return nil, nil
	}

	out, err := s.ddb.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.table("customers")),
		FilterExpression: aws.String("#attr = :val"),
		ExpressionAttributeNames: map[string]string{
			"#attr": attr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":val": &types.AttributeValueMemberS{Value: val},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "dynamo: scan customers by %s", attr)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}

	items := make([]customerItem, 0, len(out.Items))
	for _, item := range out.Items {
		var it customerItem
		if err := attributevalue.UnmarshalMap(item, &it); err != nil {
			return nil, eris.Wrap(err, "dynamo: unmarshal customer")
		}
		items = append(items, it)
	}
	// Oldest match wins, matching the SQL backends.
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt < items[j].CreatedAt })

	c := fromCustomerItem(items[0])
	if c.VehicleIDs, err = s.customerVehicleIDs(ctx, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *DynamoStore) customerVehicleIDs(ctx context.Context, customerID string) ([]string, error) {
	vehicles, err := s.ListVehiclesByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, v := range vehicles {
		ids = append(ids, v.ID)
	}
	return ids, nil
}

func (s *DynamoStore) UpdateCustomer(ctx context.Context, id string, upd model.CustomerUpdate) (*model.Customer, error) {
	expr := newUpdateExpr()
	if upd.FirstName != nil {
		expr.set("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		expr.set("last_name", *upd.LastName)
	}
	if upd.Email != nil {
		expr.set("email", *upd.Email)
	}
	if upd.Phone != nil {
		expr.set("phone", *upd.Phone)
	}
	if upd.Address != nil {
		expr.set("address", *upd.Address)
	}
	expr.set("updated_at", time.Now().UTC().Format(time.RFC3339Nano))

	item, err := s.updateItem(ctx, "customers", "customer", id, expr)
	if err != nil {
		return nil, err
	}
	var it customerItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return nil, eris.Wrap(err, "dynamo: unmarshal customer")
	}
	c := fromCustomerItem(it)
	if c.VehicleIDs, err = s.customerVehicleIDs(ctx, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *DynamoStore) DeleteCustomer(ctx context.Context, id string) error {
	_, err := s.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table("customers")),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return notFound("customer", id)
		}
		return eris.Wrapf(err, "dynamo: delete customer %s", id)
	}
	return nil
}

func (s *DynamoStore) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.table("customers")),
	}

	var customers []model.Customer
	for {
		out, err := s.ddb.Scan(ctx, input)
		if err != nil {
			return nil, eris.Wrap(err, "dynamo: scan customers")
		}
		for _, item := range out.Items {
			var it customerItem
			if err := attributevalue.UnmarshalMap(item, &it); err != nil {
				return nil, eris.Wrap(err, "dynamo: unmarshal customer")
			}
			customers = append(customers, *fromCustomerItem(it))
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	sort.Slice(customers, func(i, j int) bool {
		return customers[i].CreatedAt.After(customers[j].CreatedAt)
	})
	return customers, nil
}

// --- vehicles ---

func (s *DynamoStore) CreateVehicle(ctx context.Context, v *model.Vehicle) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now
	return s.putVehicle(ctx, v)
}

func (s *DynamoStore) putVehicle(ctx context.Context, v *model.Vehicle) error {
	av, err := attributevalue.MarshalMap(toVehicleItem(v))
	if err != nil {
		return eris.Wrap(err, "dynamo: marshal vehicle")
	}
	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table("vehicles")),
		Item:      av,
	})
	return eris.Wrap(err, "dynamo: put vehicle")
}

func (s *DynamoStore) GetVehicle(ctx context.Context, id string) (*model.Vehicle, error) {
	out, err := s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table("vehicles")),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "dynamo: get vehicle %s", id)
	}
	if len(out.Item) == 0 {
		return nil, notFound("vehicle", id)
	}

	var it vehicleItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, eris.Wrap(err, "dynamo: unmarshal vehicle")
	}
	return fromVehicleItem(it), nil
}

func (s *DynamoStore) GetVehicleByVIN(ctx context.Context, vin string) (*model.Vehicle, error) {
	if vin == "" {
		return nil, nil
	}

	out, err := s.ddb.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.table("vehicles")),
		FilterExpression: aws.String("vin = :vin"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":vin": &types.AttributeValueMemberS{Value: vin},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "dynamo: scan vehicles by vin")
	}
	if len(out.Items) == 0 {
		return nil, nil
	}

	items := make([]vehicleItem, 0, len(out.Items))
	for _, item := range out.Items {
		var it vehicleItem
		if err := attributevalue.UnmarshalMap(item, &it); err != nil {
			return nil, eris.Wrap(err, "dynamo: unmarshal vehicle")
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt < items[j].CreatedAt })
	return fromVehicleItem(items[0]), nil
}

func (s *DynamoStore) UpdateVehicle(ctx context.Context, id string, upd model.VehicleUpdate) (*model.Vehicle, error) {
	expr := newUpdateExpr()
	if upd.Plate != nil {
		expr.set("plate", *upd.Plate)
	}
	if upd.Mileage != nil {
		expr.set("mileage", *upd.Mileage)
	}
	expr.set("updated_at", time.Now().UTC().Format(time.RFC3339Nano))

	item, err := s.updateItem(ctx, "vehicles", "vehicle", id, expr)
	if err != nil {
		return nil, err
	}
	var it vehicleItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return nil, eris.Wrap(err, "dynamo: unmarshal vehicle")
	}
	return fromVehicleItem(it), nil
}

func (s *DynamoStore) DeleteVehicle(ctx context.Context, id string) error {
	_, err := s.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table("vehicles")),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return notFound("vehicle", id)
		}
		return eris.Wrapf(err, "dynamo: delete vehicle %s", id)
	}
	return nil
}

func (s *DynamoStore) ListVehiclesByCustomer(ctx context.Context, customerID string) ([]model.Vehicle, error) {
	out, err := s.ddb.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.table("vehicles")),
		FilterExpression: aws.String("customer_id = :customer_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":customer_id": &types.AttributeValueMemberS{Value: customerID},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "dynamo: scan vehicles by customer")
	}

	items := make([]vehicleItem, 0, len(out.Items))
	for _, item := range out.Items {
		var it vehicleItem
		if err := attributevalue.UnmarshalMap(item, &it); err != nil {
			return nil, eris.Wrap(err, "dynamo: unmarshal vehicle")
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt < items[j].CreatedAt })

	var vehicles []model.Vehicle
	for _, it := range items {
		vehicles = append(vehicles, *fromVehicleItem(it))
	}
	return vehicles, nil
}

// --- partial updates ---

// updateExpr accumulates SET clauses for a partial UpdateItem. Attribute
// names go through placeholders so reserved words like "status" and "total"
// are safe.
type updateExpr struct {
	clauses []string
	names   map[string]string
	values  map[string]types.AttributeValue
	err     error
}

func newUpdateExpr() *updateExpr {
	return &updateExpr{
		names:  map[string]string{},
		values: map[string]types.AttributeValue{},
	}
}

func (e *updateExpr) set(attr string, v any) {
	if e.err != nil {
		return
	}
	av, err := attributevalue.Marshal(v)
	if err != nil {
		e.err = eris.Wrapf(err, "dynamo: marshal attribute %s", attr)
		return
	}
	e.clauses = append(e.clauses, "#"+attr+" = :"+attr)
	e.names["#"+attr] = attr
	e.values[":"+attr] = av
}

func (e *updateExpr) expression() string {
	return "SET " + strings.Join(e.clauses, ", ")
}

// updateItem applies the accumulated SET expression in a single conditional
// UpdateItem call, so concurrent writers never clobber each other the way a
// read-modify-write would. Returns the updated attributes.
func (s *DynamoStore) updateItem(ctx context.Context, table, entity, id string, expr *updateExpr) (map[string]types.AttributeValue, error) {
	if expr.err != nil {
		return nil, expr.err
	}
	out, err := s.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table(table)),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:          aws.String(expr.expression()),
		ExpressionAttributeNames:  expr.names,
		ExpressionAttributeValues: expr.values,
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return nil, notFound(entity, id)
		}
		return nil, eris.Wrapf(err, "dynamo: update %s %s", entity, id)
	}
	return out.Attributes, nil
}

// --- item conversion ---

func toWorkOrderItem(wo *model.WorkOrder) (workOrderItem, error) {
	infoJSON, itemsJSON, notesJSON, err := marshalWorkOrderJSON(wo.VehicleInfo, wo.LineItems, wo.ProcessingNotes)
	if err != nil {
		return workOrderItem{}, err
	}
	return workOrderItem{
		ID:              wo.ID,
		CustomerID:      wo.CustomerID,
		VehicleID:       wo.VehicleID,
		VehicleInfo:     infoJSON,
		WorkSummary:     wo.WorkSummary,
		LineItems:       itemsJSON,
		TotalParts:      wo.TotalParts,
		TotalLabor:      wo.TotalLabor,
		Total:           wo.Total,
		Status:          string(wo.Status),
		ProcessingNotes: notesJSON,
		CreatedAt:       wo.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       wo.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func fromWorkOrderItem(it workOrderItem) (*model.WorkOrder, error) {
	createdAt, _ := time.Parse(time.RFC3339Nano, it.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, it.UpdatedAt)

	wo := model.WorkOrder{
		ID:          it.ID,
		CustomerID:  it.CustomerID,
		VehicleID:   it.VehicleID,
		WorkSummary: it.WorkSummary,
		TotalParts:  it.TotalParts,
		TotalLabor:  it.TotalLabor,
		Total:       it.Total,
		Status:      model.WorkOrderStatus(it.Status),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
	if err := json.Unmarshal([]byte(it.VehicleInfo), &wo.VehicleInfo); err != nil {
		return nil, eris.Wrap(err, "dynamo: unmarshal vehicle info")
	}
	if err := json.Unmarshal([]byte(it.LineItems), &wo.LineItems); err != nil {
		return nil, eris.Wrap(err, "dynamo: unmarshal line items")
	}
	if err := json.Unmarshal([]byte(it.ProcessingNotes), &wo.ProcessingNotes); err != nil {
		return nil, eris.Wrap(err, "dynamo: unmarshal processing notes")
	}
	return &wo, nil
}

func toCustomerItem(c *model.Customer) customerItem {
	return customerItem{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromCustomerItem(it customerItem) *model.Customer {
	createdAt, _ := time.Parse(time.RFC3339Nano, it.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, it.UpdatedAt)
	return &model.Customer{
		ID:        it.ID,
		FirstName: it.FirstName,
		LastName:  it.LastName,
		Email:     it.Email,
		Phone:     it.Phone,
		Address:   it.Address,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

func toVehicleItem(v *model.Vehicle) vehicleItem {
	return vehicleItem{
		ID:         v.ID,
		CustomerID: v.CustomerID,
		VIN:        v.VIN,
		Plate:      v.Plate,
		Year:       v.Year,
		Make:       v.Make,
		Model:      v.Model,
		Engine:     v.Engine,
		Mileage:    v.Mileage,
		CreatedAt:  v.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  v.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromVehicleItem(it vehicleItem) *model.Vehicle {
	createdAt, _ := time.Parse(time.RFC3339Nano, it.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, it.UpdatedAt)
	return &model.Vehicle{
		ID:         it.ID,
		CustomerID: it.CustomerID,
		VIN:        it.VIN,
		Plate:      it.Plate,
		Year:       it.Year,
		Make:       it.Make,
		Model:      it.Model,
		Engine:     it.Engine,
		Mileage:    it.Mileage,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
}

func joinAnd(exprs []string) string {
	out := exprs[0]
	for _, e := range exprs[1:] {
		out += " AND " + e
	}
	return out
}

func paginate(orders []model.WorkOrder, limit, offset int) []model.WorkOrder {
	if offset > 0 {
		if offset >= len(orders) {
			return nil
		}
		orders = orders[offset:]
	}
	if limit > 0 && limit < len(orders) {
		orders = orders[:limit]
	}
	return orders
}
