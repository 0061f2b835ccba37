package receipthook

// receiptHubABI is the minimal ABI fragment for the on-chain receipt hub
// contract, reproduced from
// original_source/services/gateway/app/hooks/irsb_receipt.py's
// RECEIPT_HUB_ABI literal: postReceipt, solverNonces, and the
// ReceiptPosted event.
const receiptHubABI = `[
  {
    "type": "function",
    "name": "postReceipt",
    "stateMutability": "nonpayable",
    "inputs": [
      {
        "name": "receipt",
        "type": "tuple",
        "components": [
          {"name": "intentHash", "type": "bytes32"},
          {"name": "constraintsHash", "type": "bytes32"},
          {"name": "routeHash", "type": "bytes32"},
          {"name": "outcomeHash", "type": "bytes32"},
          {"name": "evidenceHash", "type": "bytes32"},
          {"name": "createdAt", "type": "uint64"},
          {"name": "expiry", "type": "uint64"},
          {"name": "solverId", "type": "uint64"},
          {"name": "signature", "type": "bytes"}
        ]
      },
      {"name": "declaredVolume", "type": "uint256"}
    ],
    "outputs": [{"name": "receiptId", "type": "bytes32"}]
  },
  {
    "type": "function",
    "name": "solverNonces",
    "stateMutability": "view",
    "inputs": [{"name": "solverId", "type": "bytes32"}],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "event",
    "name": "ReceiptPosted",
    "inputs": [
      {"name": "receiptId", "type": "bytes32", "indexed": true},
      {"name": "intentHash", "type": "bytes32", "indexed": true},
      {"name": "solverId", "type": "bytes32", "indexed": false},
      {"name": "expiry", "type": "uint64", "indexed": false}
    ]
  }
]`
