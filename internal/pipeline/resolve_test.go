package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopdesk/workorder-cli/internal/model"
)

func TestResolveCustomer_SuppliedIDAuthoritative(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)
	ctx := context.Background()

	c := &model.Customer{FirstName: "Jane"}
	require.NoError(t, st.CreateCustomer(ctx, c))

	id, notes := r.ResolveCustomer(ctx, CustomerHints{ID: c.ID, Phone: "555-0100"})
	assert.Equal(t, c.ID, id)
	assert.Empty(t, notes)
}

func TestResolveCustomer_MissingSuppliedIDSoftFails(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)

	id, notes := r.ResolveCustomer(context.Background(), CustomerHints{ID: "ghost"})
	assert.Empty(t, id)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0], "continuing without customer")
}

func TestResolveCustomer_PhoneBeforeEmail(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)
	ctx := context.Background()

	byPhone := &model.Customer{FirstName: "Phone", Phone: "555-0100"}
	require.NoError(t, st.CreateCustomer(ctx, byPhone))
	byEmail := &model.Customer{FirstName: "Email", Email: "x@example.com"}
	require.NoError(t, st.CreateCustomer(ctx, byEmail))

	id, notes := r.ResolveCustomer(ctx, CustomerHints{Phone: "555-0100", Email: "x@example.com"})
	assert.Equal(t, byPhone.ID, id)
	assert.Contains(t, notes, "Found existing customer by phone")
}

func TestResolveCustomer_EmailFallback(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)
	ctx := context.Background()

	c := &model.Customer{FirstName: "Email", Email: "x@example.com"}
	require.NoError(t, st.CreateCustomer(ctx, c))

	id, notes := r.ResolveCustomer(ctx, CustomerHints{Phone: "555-0199", Email: "x@example.com"})
	assert.Equal(t, c.ID, id)
	assert.Contains(t, notes, "Found existing customer by email")
}

func TestResolveCustomer_CreatesFromName(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)
	ctx := context.Background()

	id, notes := r.ResolveCustomer(ctx, CustomerHints{Name: "jane doe", Phone: "555-0100"})
	require.NotEmpty(t, id)
	assert.Contains(t, notes[len(notes)-1], "Created new customer")

	c, err := st.GetCustomer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "jane", c.FirstName)
	assert.Equal(t, "doe", c.LastName)
	assert.Equal(t, "555-0100", c.Phone)
	assert.Empty(t, c.Address)
}

func TestResolveCustomer_PreservesNameCase(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)
	ctx := context.Background()

	id, _ := r.ResolveCustomer(ctx, CustomerHints{Name: "Shawn McDonald"})
	require.NotEmpty(t, id)

	c, err := st.GetCustomer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Shawn", c.FirstName)
	assert.Equal(t, "McDonald", c.LastName)

	id, _ = r.ResolveCustomer(ctx, CustomerHints{Name: "moira O'Brien"})
	require.NotEmpty(t, id)

	c, err = st.GetCustomer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "moira", c.FirstName)
	assert.Equal(t, "O'Brien", c.LastName)
}

func TestResolveCustomer_ConcurrentRuns(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)
	ctx := context.Background()

	// One resolver is shared by every concurrent background run; creating
	// customers from different runs at once must be safe.
	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _ := r.ResolveCustomer(ctx, CustomerHints{
				Name: fmt.Sprintf("Customer McNumber%d", i),
			})
			ids[i] = id
		}()
	}
	wg.Wait()

	for i, id := range ids {
		require.NotEmpty(t, id)
		c, err := st.GetCustomer(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("McNumber%d", i), c.LastName)
	}
}

func TestResolveCustomer_SingleTokenName(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)

	id, _ := r.ResolveCustomer(context.Background(), CustomerHints{Name: "Cher"})
	require.NotEmpty(t, id)

	c, err := st.GetCustomer(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Cher", c.FirstName)
	assert.Empty(t, c.LastName)
}

func TestResolveCustomer_NothingToGoOn(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)

	id, notes := r.ResolveCustomer(context.Background(), CustomerHints{})
	assert.Empty(t, id)
	assert.Empty(t, notes)
}

func TestResolveVehicle_RequiresCustomer(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)

	id, notes := r.ResolveVehicle(context.Background(), "", map[string]string{
		model.InfoVIN: "1HGCM82633A004352",
	})
	assert.Empty(t, id)
	assert.Empty(t, notes)
}

func TestResolveVehicle_Idempotent(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)
	ctx := context.Background()

	c := &model.Customer{FirstName: "Jane"}
	require.NoError(t, st.CreateCustomer(ctx, c))

	info := map[string]string{
		model.InfoVIN:  "1HGCM82633A004352",
		model.InfoYear: "2003",
		model.InfoMake: "Honda",
	}

	first, notes := r.ResolveVehicle(ctx, c.ID, info)
	require.NotEmpty(t, first)
	assert.Contains(t, notes, "Created new vehicle")

	second, notes := r.ResolveVehicle(ctx, c.ID, info)
	assert.Equal(t, first, second)
	assert.Contains(t, notes, "Found existing vehicle")
}

func TestResolveVehicle_MonotonicMileage(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)
	ctx := context.Background()

	c := &model.Customer{}
	require.NoError(t, st.CreateCustomer(ctx, c))
	v := &model.Vehicle{CustomerID: c.ID, VIN: "1HGCM82633A004352", Mileage: 90000}
	require.NoError(t, st.CreateVehicle(ctx, v))

	// A lower observed reading must not regress the stored mileage.
	id, _ := r.ResolveVehicle(ctx, c.ID, map[string]string{
		model.InfoVIN:     "1HGCM82633A004352",
		model.InfoMileage: "88452",
	})
	require.Equal(t, v.ID, id)

	got, err := st.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 90000, got.Mileage)

	// A higher one moves it forward.
	_, _ = r.ResolveVehicle(ctx, c.ID, map[string]string{
		model.InfoVIN:     "1HGCM82633A004352",
		model.InfoMileage: "91250",
	})
	got, err = st.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 91250, got.Mileage)
}

func TestResolveVehicle_MergesPlate(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)
	ctx := context.Background()

	c := &model.Customer{}
	require.NoError(t, st.CreateCustomer(ctx, c))
	v := &model.Vehicle{CustomerID: c.ID, VIN: "1HGCM82633A004352"}
	require.NoError(t, st.CreateVehicle(ctx, v))

	_, _ = r.ResolveVehicle(ctx, c.ID, map[string]string{
		model.InfoVIN:   "1HGCM82633A004352",
		model.InfoPlate: "7ABC123",
	})

	got, err := st.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "7ABC123", got.Plate)
}

func TestResolveVehicle_PlaceholderOnPartialInfo(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)
	ctx := context.Background()

	c := &model.Customer{}
	require.NoError(t, st.CreateCustomer(ctx, c))

	id, notes := r.ResolveVehicle(ctx, c.ID, map[string]string{
		model.InfoMake:  "Honda",
		model.InfoModel: "Accord",
	})
	require.NotEmpty(t, id)
	assert.Contains(t, notes, "Created new vehicle with partial info")

	v, err := st.GetVehicle(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, v.VIN)
	assert.Equal(t, "Honda", v.Make)
}

func TestResolveVehicle_NoVINNoAttributes(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)
	ctx := context.Background()

	c := &model.Customer{}
	require.NoError(t, st.CreateCustomer(ctx, c))

	id, notes := r.ResolveVehicle(ctx, c.ID, map[string]string{model.InfoMileage: "42000"})
	assert.Empty(t, id)
	assert.Empty(t, notes)
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in          string
		first, last string
	}{
		{"Jane Doe", "Jane", "Doe"},
		{"Jane van der Berg", "Jane", "van der Berg"},
		{"Cher", "Cher", ""},
		{"  Jane  Doe  ", "Jane", "Doe"},
	}
	for _, tt := range tests {
		first, last := splitName(tt.in)
		assert.Equal(t, tt.first, first, tt.in)
		assert.Equal(t, tt.last, last, tt.in)
	}
}
