package polygon

// Wire DTOs for the provider REST responses. Only the fields the scanner
// reads are declared; everything else in the payload is ignored.

type aggsResponse struct {
	Ticker       string      `json:"ticker"`
	QueryCount   int         `json:"queryCount"`
	ResultsCount int         `json:"resultsCount"`
	Adjusted     bool        `json:"adjusted"`
	Results      []aggResult `json:"results"`
	Status       string      `json:"status"`
	RequestID    string      `json:"request_id"`
}

type aggResult struct {
	Volume       float64 `json:"v"`
	VWAP         float64 `json:"vw"`
	Open         float64 `json:"o"`
	Close        float64 `json:"c"`
	High         float64 `json:"h"`
	Low          float64 `json:"l"`
	TimestampMS  int64   `json:"t"`
	Transactions int64   `json:"n"`
}

type stockSnapshotResponse struct {
	Status    string       `json:"status"`
	RequestID string       `json:"request_id"`
	Ticker    *tickerSnap  `json:"ticker"`
	Tickers   []tickerSnap `json:"tickers"`
}

type tickerSnap struct {
	Ticker    string     `json:"ticker"`
	UpdatedNS int64      `json:"updated"`
	Day       ohlcvSnap  `json:"day"`
	PrevDay   ohlcvSnap  `json:"prevDay"`
	LastTrade *tradeSnap `json:"lastTrade"`
	LastQuote *quoteSnap `json:"lastQuote"`
}

type ohlcvSnap struct {
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
	VWAP   float64 `json:"vw"`
}

type tradeSnap struct {
	Price float64 `json:"p"`
	Size  float64 `json:"s"`
}

// quoteSnap: uppercase P is the ask, lowercase p the bid in the v2 stock
// snapshot schema.
type quoteSnap struct {
	Ask     float64 `json:"P"`
	Bid     float64 `json:"p"`
	AskSize float64 `json:"S"`
	BidSize float64 `json:"s"`
}

type chainResponse struct {
	Status    string         `json:"status"`
	RequestID string         `json:"request_id"`
	Results   []contractSnap `json:"results"`
	NextURL   string         `json:"next_url"`
}

type contractSnap struct {
	Day               optionDay        `json:"day"`
	Details           contractDetails  `json:"details"`
	Greeks            *greeksSnap      `json:"greeks"`
	ImpliedVolatility float64          `json:"implied_volatility"`
	LastQuote         *optionQuote     `json:"last_quote"`
	LastTrade         *optionTrade     `json:"last_trade"`
	OpenInterest      float64          `json:"open_interest"`
	UnderlyingAsset   *underlyingAsset `json:"underlying_asset"`
}

type optionDay struct {
	Close         float64 `json:"close"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Open          float64 `json:"open"`
	PreviousClose float64 `json:"previous_close"`
	Volume        float64 `json:"volume"`
	VWAP          float64 `json:"vwap"`
}

type contractDetails struct {
	ContractType      string  `json:"contract_type"`
	ExerciseStyle     string  `json:"exercise_style"`
	ExpirationDate    string  `json:"expiration_date"`
	SharesPerContract float64 `json:"shares_per_contract"`
	StrikePrice       float64 `json:"strike_price"`
	Ticker            string  `json:"ticker"`
}

type greeksSnap struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

type optionQuote struct {
	Ask      float64 `json:"ask"`
	AskSize  float64 `json:"ask_size"`
	Bid      float64 `json:"bid"`
	BidSize  float64 `json:"bid_size"`
	Midpoint float64 `json:"midpoint"`
}

type optionTrade struct {
	Price        float64 `json:"price"`
	Size         float64 `json:"size"`
	SIPTimestamp int64   `json:"sip_timestamp"`
}

type underlyingAsset struct {
	Price  float64 `json:"price"`
	Ticker string  `json:"ticker"`
}

type tradesResponse struct {
	Status    string        `json:"status"`
	RequestID string        `json:"request_id"`
	Results   []tradeResult `json:"results"`
	NextURL   string        `json:"next_url"`
}

type tradeResult struct {
	Price        float64 `json:"price"`
	Size         float64 `json:"size"`
	SIPTimestamp int64   `json:"sip_timestamp"`
	Exchange     int     `json:"exchange"`
	Conditions   []int   `json:"conditions"`
}
