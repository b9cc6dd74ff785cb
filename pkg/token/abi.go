package token

// ABI is the interface of the token contract: the ERC20 read methods and
// transfer, plus a mint entry point guarded on chain.
const ABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"decimals","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"name","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"mint","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`
