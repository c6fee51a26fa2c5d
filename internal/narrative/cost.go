package narrative

// pricing is USD per million tokens.
type pricing struct {
	input  float64
	cached float64
	output float64
}

var priceTable = map[string]pricing{
	"gpt-5":        {input: 1.25, cached: 0.125, output: 10.0},
	"gpt-5-mini":   {input: 0.25, cached: 0.025, output: 2.0},
	"gpt-5-nano":   {input: 0.05, cached: 0.005, output: 0.4},
	"gpt-4o":       {input: 2.5, cached: 1.25, output: 10.0},
	"gpt-4o-mini":  {input: 0.15, cached: 0.075, output: 0.6},
	"gpt-4.1-mini": {input: 0.4, cached: 0.1, output: 1.6},
	"gpt-4.1-nano": {input: 0.1, cached: 0.025, output: 0.4},
}

// CostUSD prices a call's usage. Unknown models cost zero and the report
// shows the tokens without a dollar figure.
func CostUSD(u Usage, model string) float64 {
	p, ok := priceTable[model]
	if !ok {
		return 0
	}
	fresh := u.Input - u.Cached
	if fresh < 0 {
		fresh = 0
	}
	const m = 1_000_000
	return float64(fresh)*p.input/m +
		float64(u.Cached)*p.cached/m +
		float64(u.Output)*p.output/m
}

// Priced reports whether a model has a pricing entry.
func Priced(model string) bool {
	_, ok := priceTable[model]
	return ok
}
