package catalog

// Network describes one EVM chain the gateway accepts payment on. CAIP2 is
// the chain identifier in eip155:<decimal> form, Asset the USDC contract on
// that chain. USDC addresses verified against Circle's published list.
type Network struct {
	Key        string `json:"key"`
	CAIP2      string `json:"caip2"`
	Asset      string `json:"asset"`
	Gasless    bool   `json:"gasless"`
	RPCURL     string `json:"rpcUrl"`
	FinalityMs int    `json:"finalityMs"`
}

// Networks is the static chain catalogue, in accepts order.
var Networks = []Network{
	{
		Key:        "base",
		CAIP2:      "eip155:8453",
		Asset:      "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Gasless:    false,
		RPCURL:     "https://mainnet.base.org",
		FinalityMs: 2000,
	},
	{
		Key:        "polygon",
		CAIP2:      "eip155:137",
		Asset:      "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		Gasless:    false,
		RPCURL:     "https://polygon-rpc.com",
		FinalityMs: 4000,
	},
	{
		Key:        "skale-europa",
		CAIP2:      "eip155:2046399126",
		Asset:      "0x5F795bb52dAC3085f578f4877D450e2929D2F13d",
		Gasless:    true,
		RPCURL:     "https://mainnet.skalenodes.com/v1/elated-tan-skat",
		FinalityMs: 1000,
	},
}

// NetworkByCAIP2 looks a network up by its eip155 identifier.
func NetworkByCAIP2(caip2 string) (Network, bool) {
	for _, n := range Networks {
		if n.CAIP2 == caip2 {
			return n, true
		}
	}
	return Network{}, false
}
