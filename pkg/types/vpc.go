package types

// VPC represents an AWS VPC
type VPC struct {
	ID        string
	Name      string
	CIDR      string
	State     string
	IsDefault bool
	OwnerID   string
}

// Subnet represents an AWS VPC Subnet
type Subnet struct {
	ID           string
	Name         string
	VPCID        string
	CIDR         string
	AZ           string
	AvailableIPs int
	State        string
	Public       bool // MapPublicIpOnLaunch
}

// Network is the network placement chosen for a deployment
type Network struct {
	VPC     VPC
	Subnets []Subnet
}

// SubnetIDs returns the ids of the network's subnets
func (n Network) SubnetIDs() []string {
	ids := make([]string, 0, len(n.Subnets))
	for _, s := range n.Subnets {
		ids = append(ids, s.ID)
	}
	return ids
}
