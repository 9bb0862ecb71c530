package protocol

// MESSAGE Protocol (plaintext carried inside every encrypted frame):
//  VER | TYPE | BODY
//   1  |  1   |  -

// BODY by TYPE:
//
// HANDSHAKE:
//  TOKEN_LEN | TOKEN | CLIENT_ID_LEN | CLIENT_ID
//      2     |   -   |       1       |    -
//
// HANDSHAKE_RESPONSE:
//  STATUS | TUNNEL_ID_LEN | TUNNEL_ID | REASON
//    1    |       1       |    -      |   -
//
// PROXY_REQUEST:
//  SESSION_ID | PORT | HOST_LEN | HOST
//      4      |  2   |    1     |  -
//
// PROXY_RESPONSE:
//  SESSION_ID | STATUS | ERROR
//      4      |   1    |   -
//
// DATA:
//  SESSION_ID | BYTES
//      4      |   -
//
// ERROR (SESSION_ID 0 means connection level):
//  SESSION_ID | MESSAGE
//      4      |    -
//
// CLOSE:
//  SESSION_ID
//      4

// ENCRYPTED FRAME (binary mode):
//  LENGTH | NONCE | CIPHERTEXT || TAG
//    4    |  12   |  -

// TRANSPARENT FRAME (one websocket text message):
//  {"type": "ProxyRequest", "data": {"session_id": 1, "host": "example.com", "port": 80}}
