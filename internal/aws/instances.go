package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/guimove/ricover/internal/model"
)

// Collect retrieves the running instances and active reservations of the
// provider's scope.
func (p *Provider) Collect(ctx context.Context) (*model.Snapshot, error) {
	instances, err := p.Instances(ctx)
	if err != nil {
		return nil, err
	}
	reservations, err := p.Reservations(ctx)
	if err != nil {
		return nil, err
	}
	return &model.Snapshot{
		Scope:        p.scope,
		CollectedAt:  time.Now().UTC(),
		Instances:    instances,
		Reservations: reservations,
	}, nil
}

// CollectReservations is Collect without the instance listing, for runs whose
// running instances come from another inventory source.
func (p *Provider) CollectReservations(ctx context.Context) (*model.Snapshot, error) {
	reservations, err := p.Reservations(ctx)
	if err != nil {
		return nil, err
	}
	return &model.Snapshot{
		Scope:        p.scope,
		CollectedAt:  time.Now().UTC(),
		Reservations: reservations,
	}, nil
}

// Instances lists pending and running instances on default or dedicated
// tenancy. Spot and scheduled instances are returned too; the normalizer
// drops them by lifecycle.
func (p *Provider) Instances(ctx context.Context) ([]model.RawInstance, error) {
	input := &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("instance-state-name"), Values: []string{"pending", "running"}},
			{Name: aws.String("tenancy"), Values: []string{"default", "dedicated"}},
		},
		MaxResults: aws.Int32(1000),
	}

	var out []model.RawInstance
	paginator := ec2.NewDescribeInstancesPaginator(p.ec2Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing instances: %w", err)
		}
		for _, r := range page.Reservations {
			for _, inst := range r.Instances {
				out = append(out, convertInstance(inst))
			}
		}
	}

	p.log.V(1).Info("listed instances", "scope", p.scope.String(), "count", len(out))
	return out, nil
}

func convertInstance(inst ec2types.Instance) model.RawInstance {
	raw := model.RawInstance{
		InstanceID:   aws.ToString(inst.InstanceId),
		InstanceType: string(inst.InstanceType),
		Platform:     string(inst.Platform),
		VPCID:        aws.ToString(inst.VpcId),
		Lifecycle:    string(inst.InstanceLifecycle),
	}
	if inst.Placement != nil {
		raw.AvailabilityZone = aws.ToString(inst.Placement.AvailabilityZone)
		raw.Tenancy = string(inst.Placement.Tenancy)
	}
	if inst.State != nil {
		raw.State = string(inst.State.Name)
	}
	return raw
}

// Reservations lists active reserved instances.
func (p *Provider) Reservations(ctx context.Context) ([]model.RawReservation, error) {
	output, err := p.ec2Client.DescribeReservedInstances(ctx, &ec2.DescribeReservedInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("state"), Values: []string{"active"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("describing reserved instances: %w", err)
	}

	out := make([]model.RawReservation, 0, len(output.ReservedInstances))
	for _, ri := range output.ReservedInstances {
		out = append(out, convertReservation(ri))
	}

	p.log.V(1).Info("listed reservations", "scope", p.scope.String(), "count", len(out))
	return out, nil
}

func convertReservation(ri ec2types.ReservedInstances) model.RawReservation {
	var recurring float64
	for _, rc := range ri.RecurringCharges {
		recurring += aws.ToFloat64(rc.Amount)
	}
	return model.RawReservation{
		ReservationID:      aws.ToString(ri.ReservedInstancesId),
		InstanceType:       string(ri.InstanceType),
		AvailabilityZone:   aws.ToString(ri.AvailabilityZone),
		Scope:              string(ri.Scope),
		Tenancy:            string(ri.InstanceTenancy),
		ProductDescription: string(ri.ProductDescription),
		FixedPrice:         float64(aws.ToFloat32(ri.FixedPrice)),
		RecurringHourly:    recurring,
		Count:              int(aws.ToInt32(ri.InstanceCount)),
		DurationSeconds:    aws.ToInt64(ri.Duration),
		State:              string(ri.State),
	}
}
